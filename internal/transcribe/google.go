// Package transcribe implements the transcription service on Google Cloud
// Speech-to-Text. It handles the audio/video formats the ingestion pipeline
// accepts and returns plain text for chunking.
package transcribe

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/api/option"

	"github.com/atomicwork-labs/kbase/internal/log"
)

// transcribeTimeout bounds one transcription end to end, including the
// long-running operation poll.
const transcribeTimeout = 10 * time.Minute

// Service wraps a Google Cloud Speech client. It satisfies
// ingest.Transcriber.
type Service struct {
	client *speech.Client
	logger log.Logger
}

// New creates a Service. credentialsFile may be empty to use application
// default credentials. A nil logger falls back to a no-op logger.
func New(ctx context.Context, credentialsFile string, logger log.Logger) (*Service, error) {
	if logger == nil {
		logger = log.NewNop()
	}

	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating speech client: %w", err)
	}
	return &Service{client: client, logger: logger}, nil
}

// Close releases the underlying client connection.
func (s *Service) Close() error {
	return s.client.Close()
}

// Transcribe reads the file at path and returns its transcript. All
// recognized alternatives are joined in order with newlines.
func (s *Service) Transcribe(ctx context.Context, path string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, transcribeTimeout)
	defer cancel()

	audio, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading audio file: %w", err)
	}

	req := &speechpb.LongRunningRecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:                   encodingForPath(path),
			LanguageCode:               "en-US",
			EnableAutomaticPunctuation: true,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: audio},
		},
	}

	op, err := s.client.LongRunningRecognize(ctx, req)
	if err != nil {
		return "", fmt.Errorf("starting transcription: %w", err)
	}
	resp, err := op.Wait(ctx)
	if err != nil {
		return "", fmt.Errorf("waiting for transcription: %w", err)
	}

	var sb strings.Builder
	for _, result := range resp.Results {
		if len(result.Alternatives) == 0 {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(result.Alternatives[0].Transcript)
	}

	s.logger.Debug("transcription finished",
		"path", filepath.Base(path),
		"results", len(resp.Results),
		"characters", sb.Len())
	return sb.String(), nil
}

// encodingForPath picks the recognition encoding by extension. Formats the
// API detects from the container header use ENCODING_UNSPECIFIED.
func encodingForPath(path string) speechpb.RecognitionConfig_AudioEncoding {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		return speechpb.RecognitionConfig_LINEAR16
	case ".mp3":
		return speechpb.RecognitionConfig_MP3
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED
	}
}
