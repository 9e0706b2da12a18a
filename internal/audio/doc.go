// Package audio plays 16-bit PCM through the sound card with oto/v3. Each
// Play returns a handle that can be paused, resumed and stopped, and that
// reports when the audio has run out.
package audio
