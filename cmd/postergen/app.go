package main

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/user/postergen/pkg/adapters/capturehtml"
	"github.com/user/postergen/pkg/adapters/chromebrowser"
	"github.com/user/postergen/pkg/adapters/filedownloader"
	"github.com/user/postergen/pkg/adapters/filesink"
	"github.com/user/postergen/pkg/adapters/ggrenderer"
	"github.com/user/postergen/pkg/adapters/logger"
	"github.com/user/postergen/pkg/adapters/memstore"
	"github.com/user/postergen/pkg/adapters/miniostorage"
	"github.com/user/postergen/pkg/adapters/nullsink"
	"github.com/user/postergen/pkg/adapters/osfilesystem"
	"github.com/user/postergen/pkg/adapters/pgstore"
	"github.com/user/postergen/pkg/config"
	"github.com/user/postergen/pkg/orchestrator"
	"github.com/user/postergen/pkg/pipeline"
	"github.com/user/postergen/pkg/ports"
)

// localUser is the account the CLI acts as when no user id is configured.
const localUser = "local"

// stores groups the persistence ports served by one backend.
type stores struct {
	templates ports.TemplateStore
	records   ports.VisualRecordStore
	profiles  ports.ProfileStore
}

// app holds the adapters shared by all commands.
type app struct {
	cfg     config.Config
	log     ports.Logger
	stores  stores
	auth    *memstore.Auth
	fs      ports.FileSystem
	render  ports.Renderer
	closers []func()
}

// newApp loads the configuration and connects the backends it names.
func newApp(ctx context.Context, g *Globals) (*app, error) {
	cfg, err := config.Load(g.Config)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if g.LogLevel != "" {
		cfg.LogLevel = g.LogLevel
	}
	if g.Debug {
		cfg.Debug = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	a := &app{
		cfg:    cfg,
		fs:     osfilesystem.New(),
		render: ggrenderer.New(),
		auth:   memstore.NewAuth(),
	}
	if g.Quiet {
		a.log = logger.NewNoop()
	} else {
		a.log = logger.NewConsole(ports.ParseLogLevel(cfg.LogLevel))
	}

	if cfg.DatabaseURL != "" {
		pool, err := pgstore.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pool.Close)
		store := pgstore.New(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			a.Close()
			return nil, err
		}
		a.log.Debug("Using PostgreSQL store")
		a.stores = stores{templates: store, records: store, profiles: store}
	} else {
		store := memstore.New()
		a.log.Debug("Using in-memory store")
		a.stores = stores{templates: store, records: store, profiles: store}
	}

	user := cfg.UserID
	if user == "" {
		user = localUser
	}
	a.auth.Impersonate(user)
	a.log.Debug("Acting as user %s", user)
	return a, nil
}

// Close releases the backend connections.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// storage returns the asset bucket: MinIO when an endpoint is configured,
// otherwise an in-memory bucket that lives for this process only.
func (a *app) storage(ctx context.Context) (ports.ObjectStorage, error) {
	sc := a.cfg.Storage
	if sc.Endpoint == "" {
		a.log.Debug("Using in-memory asset storage")
		return memstore.NewStorage(sc.PublicURL), nil
	}
	s, err := miniostorage.New(miniostorage.Options{
		Endpoint:  sc.Endpoint,
		AccessKey: sc.AccessKey,
		SecretKey: sc.SecretKey,
		Bucket:    sc.Bucket,
		UseSSL:    sc.UseSSL,
		PublicURL: sc.PublicURL,
	})
	if err != nil {
		return nil, err
	}
	if err := s.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	a.log.Debug("Using object storage at %s (bucket %s)", sc.Endpoint, sc.Bucket)
	return s, nil
}

// orchestrator wires the browser, the renderer and the output directory.
func (a *app) orchestrator(outputDir string) (*orchestrator.Orchestrator, error) {
	if outputDir == "" {
		outputDir = a.cfg.OutputDir
	}
	if err := a.fs.MkdirAll(outputDir); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	sink, err := a.sink()
	if err != nil {
		return nil, err
	}

	capturer := capturehtml.New(chromebrowser.Options{
		ChromePath: a.cfg.ChromePath,
		Headless:   a.cfg.Headless,
	})

	return orchestrator.New(orchestrator.Deps{
		Templates:  a.stores.templates,
		Records:    a.stores.records,
		Auth:       a.auth,
		Rasterizer: capturer,
		Prober:     capturer,
		Renderer:   a.render,
		Downloader: filedownloader.New(outputDir, a.fs),
		Sink:       sink,
		Logger:     a.log,
	}, a.cfg.ToOrchestratorConfig()), nil
}

// sink returns a file sink in debug mode and a null sink otherwise.
func (a *app) sink() (ports.DebugSink, error) {
	if !a.cfg.Debug {
		return nullsink.New(), nil
	}
	if err := a.fs.MkdirAll(a.cfg.DebugDir); err != nil {
		return nil, fmt.Errorf("create debug directory: %w", err)
	}
	return filesink.New(a.cfg.DebugDir, a.fs, a.render), nil
}

// loadTemplateFile reads a template definition from YAML.
func loadTemplateFile(fs ports.FileSystem, path string) (*pipeline.TemplateDefinition, error) {
	data, err := fs.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read template: %w", err)
	}
	var tpl pipeline.TemplateDefinition
	if err := yaml.Unmarshal(data, &tpl); err != nil {
		return nil, pipeline.WrapError(pipeline.KindValidation, err, "parse template %s", path)
	}
	if tpl.ID == "" {
		tpl.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return &tpl, nil
}

// readAssetFiles loads files from disk with their media types.
func readAssetFiles(paths []string) ([]pipeline.AssetFile, error) {
	files := make([]pipeline.AssetFile, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		files = append(files, pipeline.AssetFile{
			Name:      filepath.Base(p),
			MediaType: mediaType(p, data),
			Data:      data,
		})
	}
	return files, nil
}

// mediaType guesses from the extension first, then from the content.
func mediaType(path string, data []byte) string {
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); t != "" {
		if i := strings.IndexByte(t, ';'); i >= 0 {
			t = t[:i]
		}
		return strings.TrimSpace(t)
	}
	t := http.DetectContentType(data)
	if i := strings.IndexByte(t, ';'); i >= 0 {
		t = t[:i]
	}
	return t
}
