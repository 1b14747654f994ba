package voice

import (
	"errors"
	"io"
	"os"
	"time"

	"interviewmic/internal/domain"
	"interviewmic/internal/ports"
)

// pumpAudio forwards microphone chunks to the stream until the capture ends,
// then closes the send side so the provider flushes its last results.
func pumpAudio(audio io.Reader, stream ports.StreamingSession, chunkSize int) error {
	defer func() { _ = stream.CloseSend() }()

	if chunkSize < 256 {
		chunkSize = 4096
	}

	buf := make([]byte, chunkSize)
	for {
		n, err := audio.Read(buf)
		if n > 0 {
			if sendErr := stream.SendAudio(buf[:n]); sendErr != nil {
				return asRecognitionError(sendErr, domain.RecognitionErrNetwork)
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) {
				return nil
			}
			return domain.RecognitionError{Code: domain.RecognitionErrAudioCapture, Detail: err.Error()}
		}
	}
}

// waitForStream waits for the provider to finish, closing it after timeout.
func waitForStream(stream ports.StreamingSession, timeout time.Duration) error {
	done := make(chan error, 1)
	go func() {
		done <- stream.Wait()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(timeout):
		_ = stream.Close()
		return <-done
	}
}

func asRecognitionError(err error, fallback domain.RecognitionErrorCode) domain.RecognitionError {
	var recErr domain.RecognitionError
	if errors.As(err, &recErr) {
		return recErr
	}
	return domain.RecognitionError{Code: fallback, Detail: err.Error()}
}
