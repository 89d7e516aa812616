package voicegate

// Config carries every tunable the service recognizes. All values are
// injected at construction; nothing is read from ambient global state.
type Config struct {
	DBPath             string  // SQLite file used when no Store is injected
	TempDir            string  // scratch dir for media conversion
	SampleRate         int     // target analysis rate, default 16000
	MFCCCount          int     // coefficients per vector, default 13
	MinSamples         int     // enrollment minimum, default 3
	Threshold          float64 // acceptance threshold, default 0.75
	MinClipSeconds     float64 // minimum voiced duration, default 0.3
	OutlierMaxDistance float64 // 0 disables outlier rejection
	IncludeSpread      bool    // append per-coefficient std deviations
	Logger             Logger
	Store              Store
}

type Option func(*Config)

func WithDBPath(path string) Option {
	return func(c *Config) {
		c.DBPath = path
	}
}

func WithTempDir(dir string) Option {
	return func(c *Config) {
		c.TempDir = dir
	}
}

func WithSampleRate(rate int) Option {
	return func(c *Config) {
		c.SampleRate = rate
	}
}

func WithMFCCCount(n int) Option {
	return func(c *Config) {
		c.MFCCCount = n
	}
}

func WithMinSamples(n int) Option {
	return func(c *Config) {
		c.MinSamples = n
	}
}

// WithThreshold sets the similarity acceptance threshold, letting each
// deployment tune its false-accept/false-reject tradeoff. Any cosine value
// in [-1, 1] is accepted, including 0.
func WithThreshold(t float64) Option {
	return func(c *Config) {
		c.Threshold = t
	}
}

func WithMinClipSeconds(s float64) Option {
	return func(c *Config) {
		c.MinClipSeconds = s
	}
}

// WithOutlierRejection enables discarding enrollment samples whose cosine
// distance to the preliminary centroid exceeds maxDistance.
func WithOutlierRejection(maxDistance float64) Option {
	return func(c *Config) {
		c.OutlierMaxDistance = maxDistance
	}
}

// WithCoefficientSpread appends per-coefficient standard deviations to each
// feature vector, doubling its length.
func WithCoefficientSpread() Option {
	return func(c *Config) {
		c.IncludeSpread = true
	}
}

func WithLogger(log Logger) Option {
	return func(c *Config) {
		c.Logger = log
	}
}

func WithStore(store Store) Option {
	return func(c *Config) {
		c.Store = store
	}
}

func defaultConfig() *Config {
	return &Config{
		DBPath:         "voicegate.sqlite3",
		TempDir:        "/tmp",
		SampleRate:     16000,
		MFCCCount:      13,
		MinSamples:     3,
		Threshold:      0.75,
		MinClipSeconds: 0.3,
	}
}
