package protofetch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/utilitywarehouse/protofetch/cache"
	"github.com/utilitywarehouse/protofetch/graph"
	"github.com/utilitywarehouse/protofetch/internal/envconfig"
	"github.com/utilitywarehouse/protofetch/internal/gitexec"
	"github.com/utilitywarehouse/protofetch/model"
)

const (
	defaultManifestFileName = "protofetch.toml"
	defaultLockFileName     = "protofetch.lock"
	defaultCacheDirName     = ".protofetch_cache"
)

// Builder assembles a Protofetch instance. All paths other than Root are
// relative to it. Mirrors ProtofetchBuilder's fluent defaulting: every
// field left unset falls back to its documented default at Build time.
type Builder struct {
	root             string
	manifestFileName string
	lockFileName     string
	outputDirName    string
	cacheDir         string
	gitProtocol      model.Protocol
	log              *slog.Logger
	envs             []string

	metricsNamespace string
	metricsRegistry  prometheus.Registerer
}

// NewBuilder returns a Builder with no fields set; Build fills in defaults.
func NewBuilder() *Builder {
	return &Builder{}
}

// Root sets the project root directory. Defaults to the current directory.
func (b *Builder) Root(path string) *Builder {
	b.root = path
	return b
}

// ManifestFileName sets the manifest file's name. Defaults to
// "protofetch.toml".
func (b *Builder) ManifestFileName(name string) *Builder {
	b.manifestFileName = name
	return b
}

// LockFileName sets the lock file's name. Defaults to "protofetch.lock".
func (b *Builder) LockFileName(name string) *Builder {
	b.lockFileName = name
	return b
}

// OutputDirectoryName overrides the manifest's proto_out_dir. Empty means
// defer to the manifest (or protofetch's own default) at Fetch time.
func (b *Builder) OutputDirectoryName(name string) *Builder {
	b.outputDirName = name
	return b
}

// CacheDirectory sets the on-disk cache root. Defaults to
// $HOME/.protofetch/cache.
func (b *Builder) CacheDirectory(path string) *Builder {
	b.cacheDir = path
	return b
}

// GitProtocol sets the transport used for coordinates that don't pin their
// own protocol. Defaults to https.
func (b *Builder) GitProtocol(protocol model.Protocol) *Builder {
	b.gitProtocol = protocol
	return b
}

// Logger sets the logger threaded through every collaborator. Defaults to
// slog.Default().
func (b *Builder) Logger(log *slog.Logger) *Builder {
	b.log = log
	return b
}

// Envs sets the environment passed to every git invocation (for
// GIT_SSH_COMMAND/GIT_ASKPASS-style overrides). Defaults to os.Environ().
func (b *Builder) Envs(envs []string) *Builder {
	b.envs = envs
	return b
}

// EnableMetrics turns on Prometheus collection for cache fetches and graph
// builds, registered under namespace against registerer. Opt-in: a CLI's
// one-shot process has nothing to scrape it, so cmd/protofetch never calls
// this; library callers embedding Protofetch alongside an HTTP server do.
func (b *Builder) EnableMetrics(namespace string, registerer prometheus.Registerer) *Builder {
	b.metricsNamespace = namespace
	b.metricsRegistry = registerer
	return b
}

// Build resolves defaults, opens the cache, and returns a ready Protofetch.
// Callers must call Close on the returned instance's cache when done; see
// Protofetch.Close.
func (b *Builder) Build(ctx context.Context) (*Protofetch, error) {
	root := b.root
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolving current directory: %w", err)
		}
		root = wd
	}

	manifestFileName := b.manifestFileName
	if manifestFileName == "" {
		manifestFileName = defaultManifestFileName
	}
	lockFileName := b.lockFileName
	if lockFileName == "" {
		lockFileName = defaultLockFileName
	}

	log := b.log
	if log == nil {
		log = slog.Default()
	}

	cacheDir := b.cacheDir
	if cacheDir == "" {
		cacheDir = envconfig.CacheDir(defaultCacheDirectory())
	}
	if !filepath.IsAbs(cacheDir) {
		cacheDir = filepath.Join(root, cacheDir)
	}

	protocol := b.gitProtocol
	if protocol == "" {
		parsed, err := model.ParseProtocol(envconfig.GitProtocol(string(model.ProtocolHTTPS)))
		if err != nil {
			return nil, err
		}
		protocol = parsed
	}

	envs := b.envs
	if envs == nil {
		envs = os.Environ()
	}
	runner := gitexec.NewRunner(log, envs)

	store, err := cache.Open(ctx, cacheDir, protocol, runner, log)
	if err != nil {
		return nil, err
	}

	if b.metricsRegistry != nil {
		cache.EnableMetrics(b.metricsNamespace, b.metricsRegistry)
		graph.EnableMetrics(b.metricsNamespace, b.metricsRegistry)
	}

	return &Protofetch{
		cache:            store,
		runner:           runner,
		log:              log,
		root:             root,
		manifestFileName: manifestFileName,
		lockFileName:     lockFileName,
		outputDirName:    b.outputDirName,
	}, nil
}

func defaultCacheDirectory() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".protofetch", "cache")
	}
	return filepath.Join(home, ".protofetch", "cache")
}

// Close releases the cache's process lock. Safe to call once after all
// operations on this Protofetch are done.
func (p *Protofetch) Close() error {
	return p.cache.Close()
}
