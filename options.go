package cleanhands

import "go.uber.org/zap"

// agentConfig holds internal configuration for an Agent.
type agentConfig struct {
	chromePath     string
	autoDownload   bool
	headless       bool
	noSandbox      bool
	screenshots    bool
	artifactsDir   string
	artifactPrefix string
	baseURL        string
	logger         *zap.Logger
}

func defaultConfig() agentConfig {
	return agentConfig{
		headless:       true,
		artifactsDir:   "artifacts",
		artifactPrefix: "clean-hands",
		baseURL:        "https://mytax.dc.gov/_/",
		logger:         zap.NewNop(),
	}
}

// Option configures an [Agent].
type Option func(*agentConfig)

// WithChromePath sets the path to the Chrome or Chromium executable.
// By default the library searches standard locations automatically.
func WithChromePath(path string) Option {
	return func(c *agentConfig) {
		c.chromePath = path
	}
}

// WithAutoDownload downloads a compatible Chromium binary when none is
// installed, caching it under the user's cache directory.
func WithAutoDownload() Option {
	return func(c *agentConfig) {
		c.autoDownload = true
	}
}

// WithHeadless controls whether the browser runs headless. Defaults to true;
// a headful browser is occasionally useful when the site changes and the
// workflow needs to be watched.
func WithHeadless(headless bool) Option {
	return func(c *agentConfig) {
		c.headless = headless
	}
}

// WithNoSandbox disables the Chrome sandbox. This is required when
// running as root, for example inside Docker containers.
func WithNoSandbox() Option {
	return func(c *agentConfig) {
		c.noSandbox = true
	}
}

// WithScreenshots enables full-page screenshots of the landing and result
// pages, written next to the PDF artifact.
func WithScreenshots() Option {
	return func(c *agentConfig) {
		c.screenshots = true
	}
}

// WithArtifactsDir sets the directory PDFs and screenshots are written to.
// Defaults to "artifacts", created on demand.
func WithArtifactsDir(dir string) Option {
	return func(c *agentConfig) {
		if dir != "" {
			c.artifactsDir = dir
		}
	}
}

// WithArtifactPrefix sets the artifact filename prefix. Defaults to
// "clean-hands"; files are named <prefix>-<notice>-<unix timestamp>.pdf.
func WithArtifactPrefix(prefix string) Option {
	return func(c *agentConfig) {
		if prefix != "" {
			c.artifactPrefix = prefix
		}
	}
}

// WithBaseURL overrides the site entry point. Intended for tests pointed at
// a local fixture server.
func WithBaseURL(u string) Option {
	return func(c *agentConfig) {
		if u != "" {
			c.baseURL = u
		}
	}
}

// WithLogger sets the structured logger. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *agentConfig) {
		if l != nil {
			c.logger = l
		}
	}
}
