package audio

// Output plays PCM audio in the output's format.
type Output interface {
	Play(pcm []byte) (Playback, error)
	Format() Format
	Close() error
}

// Playback is one piece of audio being played.
type Playback interface {
	Pause()
	Resume()
	// Stop ends playback early. Done is closed afterwards.
	Stop()
	// Done is closed when the audio has finished or was stopped.
	Done() <-chan struct{}
}
