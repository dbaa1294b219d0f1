package ui

// Config contains window, input, and audio settings for an App.
type Config struct {
	Title       string // window title
	Scale       int    // integer upscaling factor
	AudioStereo bool   // if true, output true stereo; if false, fold to mono
	AudioBufferMs   int  // desired audio player buffer size in ms
	AudioLowLatency bool // hard-cap buffering for minimal latency
	Palette         int  // index into the compat palette table; 0 is classic DMG green
}

// Defaults fills missing fields with reasonable defaults.
func (c *Config) Defaults() {
	if c.Title == "" {
		c.Title = "dotmatrix"
	}
	if c.Scale <= 0 {
		c.Scale = 3
	}
	if c.AudioBufferMs <= 0 {
		c.AudioBufferMs = 40
	}
}
