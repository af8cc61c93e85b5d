// Package main provides the CLI entry point for postergen.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/ideamans/go-l10n"

	"github.com/user/postergen/pkg/assets"
	"github.com/user/postergen/pkg/orchestrator"
	"github.com/user/postergen/pkg/ports"
	"github.com/user/postergen/pkg/session"
	"github.com/user/postergen/pkg/summarizer"
)

// Globals are the flags shared by every command.
type Globals struct {
	Config   string `short:"c" type:"path" help:"YAML configuration file."`
	LogLevel string `short:"l" help:"Log level (debug, info, warn, error), overrides log_level."`
	Quiet    bool   `short:"Q" help:"Suppress all log output."`
	Debug    bool   `short:"d" help:"Save intermediate artefacts to the debug directory."`
}

// CLI defines the command-line interface with subcommands.
type CLI struct {
	Globals

	Render    RenderCmd    `cmd:"" help:"Render a template to a PNG poster."`
	Classify  ClassifyCmd  `cmd:"" help:"Classify image files by their role in a poster."`
	Templates TemplatesCmd `cmd:"" help:"List content types and active templates."`
	History   HistoryCmd   `cmd:"" help:"List the latest generated posters."`
	Assets    AssetsCmd    `cmd:"" help:"Manage the template asset library."`
	Signup    SignupCmd    `cmd:"" help:"Create an account and its profile."`
	Version   VersionCmd   `cmd:"" help:"Show version information."`
}

// RenderCmd defines the render subcommand.
type RenderCmd struct {
	TemplateFile string            `short:"f" type:"existingfile" xor:"template" required:"" help:"Template definition file (YAML)."`
	TemplateID   string            `short:"t" xor:"template" required:"" help:"Template id in the store."`
	Set          map[string]string `short:"s" help:"Field value as name=value (repeatable)."`
	Output       string            `short:"o" type:"path" help:"Output directory (overrides output_dir)."`
	Summary      string            `type:"path" help:"Write a report of the render to this path (JSON for .json, Markdown otherwise)."`
}

// ClassifyCmd defines the classify subcommand.
type ClassifyCmd struct {
	Files        []string `arg:"" type:"existingfile" help:"Image files to classify."`
	Sheet        string   `type:"path" help:"Write a contact sheet PNG to this path."`
	Columns      int      `default:"4" help:"Contact sheet columns."`
	AbortOnError bool     `help:"Stop at the first file that cannot be decoded."`
}

// TemplatesCmd defines the templates subcommand.
type TemplatesCmd struct {
	ContentType string `short:"T" help:"Only list templates of this content type."`
}

// HistoryCmd defines the history subcommand.
type HistoryCmd struct {
	Limit int `short:"n" default:"20" help:"Number of records to show."`
}

// AssetsCmd groups the asset library subcommands.
type AssetsCmd struct {
	Upload AssetsUploadCmd `cmd:"" help:"Classify and upload files for a template."`
	List   AssetsListCmd   `cmd:"" help:"List the files stored for a template."`
	Delete AssetsDeleteCmd `cmd:"" help:"Delete stored files."`
}

// AssetsUploadCmd defines the assets upload subcommand.
type AssetsUploadCmd struct {
	TemplateID string   `arg:"" help:"Template the files belong to."`
	Files      []string `arg:"" type:"existingfile" help:"Image files to upload."`
}

// AssetsListCmd defines the assets list subcommand.
type AssetsListCmd struct {
	TemplateID string `arg:"" help:"Template to list."`
}

// AssetsDeleteCmd defines the assets delete subcommand.
type AssetsDeleteCmd struct {
	Paths []string `arg:"" help:"Object paths as printed by list."`
}

// SignupCmd defines the signup subcommand.
type SignupCmd struct {
	Email      string `required:"" help:"Account email."`
	Password   string `required:"" env:"POSTERGEN_PASSWORD" help:"Account password."`
	FullName   string `required:"" help:"Full name shown on the profile."`
	Delegation string `help:"Delegation the member belongs to."`
}

// VersionCmd shows version information.
type VersionCmd struct{}

var version = "dev"

func main() {
	cli := CLI{}

	ctx := kong.Parse(&cli,
		kong.Name("postergen"),
		kong.Description(l10n.T("Generate event posters from HTML templates.")),
		kong.UsageOnError(),
	)

	err := ctx.Run(&cli.Globals)
	ctx.FatalIfErrorf(err)
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(log ports.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			log.Warn("Interrupted, shutting down...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

// start builds the app and a signal-aware context.
func start(g *Globals) (*app, context.Context, func(), error) {
	a, err := newApp(context.Background(), g)
	if err != nil {
		return nil, nil, nil, err
	}
	ctx, cancel := signalContext(a.log)
	return a, ctx, func() { cancel(); a.Close() }, nil
}

// Run executes the render command.
func (cmd *RenderCmd) Run(g *Globals) error {
	a, ctx, stop, err := start(g)
	if err != nil {
		return err
	}
	defer stop()

	orch, err := a.orchestrator(cmd.Output)
	if err != nil {
		return err
	}
	req := orchestrator.RenderRequest{TemplateID: cmd.TemplateID, Values: cmd.Set}
	if cmd.TemplateFile != "" {
		tpl, err := loadTemplateFile(a.fs, cmd.TemplateFile)
		if err != nil {
			return err
		}
		req.Template = tpl
	}

	res, err := orch.Run(ctx, req)
	if err != nil {
		return err
	}
	for _, name := range res.Cyclic {
		fmt.Println(l10n.F("Warning: formula field %s is part of a cycle and was not computed", name))
	}
	fmt.Println(l10n.F("Poster written to %s (%dx%d)", res.Export.Location, res.Dimensions.Width, res.Dimensions.Height))

	if cmd.Summary != "" {
		summary := summarizer.NewBuilder().
			WithTemplate(res.Template).
			WithFields(res.Template.FieldSchema, res.Values).
			WithFormulas(res.FormulaPasses, res.Cyclic).
			WithPoster(res.Export, res.DimensionSource, a.cfg.Scale).
			Build()
		if err := summarizer.NewWriter(summarizer.FormatterFor(cmd.Summary), a.fs).Write(cmd.Summary, summary); err != nil {
			return err
		}
		fmt.Println(l10n.F("Summary written to %s", cmd.Summary))
	}
	return nil
}

// Run executes the classify command.
func (cmd *ClassifyCmd) Run(g *Globals) error {
	a, ctx, stop, err := start(g)
	if err != nil {
		return err
	}
	defer stop()

	files, err := readAssetFiles(cmd.Files)
	if err != nil {
		return err
	}
	sink, err := a.sink()
	if err != nil {
		return err
	}
	orch := orchestrator.New(orchestrator.Deps{Renderer: a.render, Sink: sink, Logger: a.log}, a.cfg.ToOrchestratorConfig())
	res, err := orch.Classify(ctx, orchestrator.ClassifyRequest{
		Files:        files,
		AbortOnError: cmd.AbortOnError,
		Sheet:        cmd.Sheet != "",
		Columns:      cmd.Columns,
	})
	if err != nil {
		return err
	}

	for _, asset := range res.Assets {
		fmt.Printf("%d  %-10s  %5dx%-5d  %s\n", asset.Priority, asset.Type, asset.Width, asset.Height, asset.Name)
	}
	for _, name := range res.Rejected {
		fmt.Println(l10n.F("Rejected: %s", name))
	}
	for name, ferr := range res.Failed {
		fmt.Println(l10n.F("Not decoded: %s (%v)", name, ferr))
	}
	if len(res.Sheet) > 0 {
		if err := a.fs.WriteFile(cmd.Sheet, res.Sheet); err != nil {
			return fmt.Errorf("write contact sheet: %w", err)
		}
		fmt.Println(l10n.F("Contact sheet written to %s", cmd.Sheet))
	}
	return nil
}

// Run executes the templates command.
func (cmd *TemplatesCmd) Run(g *Globals) error {
	a, ctx, stop, err := start(g)
	if err != nil {
		return err
	}
	defer stop()

	types, err := a.stores.templates.ListContentTypes(ctx)
	if err != nil {
		return fmt.Errorf("list content types: %w", err)
	}
	for _, ct := range types {
		fmt.Printf("[%s] %s\n", ct.ID, ct.Name)
	}
	templates, err := a.stores.templates.ListTemplates(ctx, cmd.ContentType)
	if err != nil {
		return fmt.Errorf("list templates: %w", err)
	}
	for _, tpl := range templates {
		fmt.Printf("%s  %s  %dx%d\n", tpl.ID, tpl.Name, tpl.Width, tpl.Height)
	}
	return nil
}

// Run executes the history command.
func (cmd *HistoryCmd) Run(g *Globals) error {
	a, ctx, stop, err := start(g)
	if err != nil {
		return err
	}
	defer stop()

	orch := orchestrator.New(orchestrator.Deps{Records: a.stores.records, Auth: a.auth, Logger: a.log}, a.cfg.ToOrchestratorConfig())
	records, err := orch.History(ctx, cmd.Limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println(l10n.T("No posters generated yet."))
		return nil
	}
	for _, r := range records {
		fmt.Printf("%s  %s  %s  %dx%d  %d\n", r.CreatedAt.Local().Format("2006-01-02 15:04"), r.TemplateID, r.FormatExport, r.Width, r.Height, r.FileSize)
	}
	return nil
}

// library opens the asset library on the configured bucket.
func library(ctx context.Context, a *app) (*assets.Library, error) {
	storage, err := a.storage(ctx)
	if err != nil {
		return nil, err
	}
	return assets.NewLibrary(storage, a.log), nil
}

// Run executes the assets upload command.
func (cmd *AssetsUploadCmd) Run(g *Globals) error {
	a, ctx, stop, err := start(g)
	if err != nil {
		return err
	}
	defer stop()

	files, err := readAssetFiles(cmd.Files)
	if err != nil {
		return err
	}
	lib, err := library(ctx, a)
	if err != nil {
		return err
	}
	uploaded, err := lib.Upload(ctx, cmd.TemplateID, files)
	for _, asset := range uploaded {
		fmt.Printf("%-10s  %s  %s\n", asset.Type, asset.Path, asset.URL)
	}
	return err
}

// Run executes the assets list command.
func (cmd *AssetsListCmd) Run(g *Globals) error {
	a, ctx, stop, err := start(g)
	if err != nil {
		return err
	}
	defer stop()

	lib, err := library(ctx, a)
	if err != nil {
		return err
	}
	paths, err := lib.List(ctx, cmd.TemplateID)
	if err != nil {
		return err
	}
	for _, p := range paths {
		fmt.Println(p)
	}
	return nil
}

// Run executes the assets delete command.
func (cmd *AssetsDeleteCmd) Run(g *Globals) error {
	a, ctx, stop, err := start(g)
	if err != nil {
		return err
	}
	defer stop()

	lib, err := library(ctx, a)
	if err != nil {
		return err
	}
	return lib.Delete(ctx, cmd.Paths...)
}

// Run executes the signup command.
func (cmd *SignupCmd) Run(g *Globals) error {
	a, ctx, stop, err := start(g)
	if err != nil {
		return err
	}
	defer stop()

	account, err := session.NewRegistrar(a.auth, a.stores.profiles, a.log).SignUp(ctx, ports.SignUpRequest{
		Email:      cmd.Email,
		Password:   cmd.Password,
		FullName:   cmd.FullName,
		Delegation: cmd.Delegation,
	})
	if err != nil {
		return err
	}
	fmt.Println(l10n.F("Account %s created for %s", account.ID, account.Email))
	return nil
}

// Run executes the version command.
func (cmd *VersionCmd) Run(g *Globals) error {
	fmt.Println(l10n.F("postergen version %s", version))
	return nil
}
