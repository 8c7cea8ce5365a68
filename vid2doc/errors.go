package vid2doc

import "fmt"

type (
	// FetchError reports a video that could not be resolved or downloaded.
	FetchError struct {
		URL string
		Err error
	}

	TranscriptionError struct {
		Path string
		Err  error
	}

	FrameExtractionError struct {
		Path string
		Err  error
	}

	RenderError struct {
		Path string
		Err  error
	}
)

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching %q: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *TranscriptionError) Error() string {
	return fmt.Sprintf("transcribing %s: %v", e.Path, e.Err)
}

func (e *TranscriptionError) Unwrap() error { return e.Err }

func (e *FrameExtractionError) Error() string {
	return fmt.Sprintf("extracting frames from %s: %v", e.Path, e.Err)
}

func (e *FrameExtractionError) Unwrap() error { return e.Err }

func (e *RenderError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("rendering report: %v", e.Err)
	}
	return fmt.Sprintf("rendering report %s: %v", e.Path, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }
