// Package convert drives the build pipeline: chapter conversion, asset
// collection, print stylesheet maintenance and the image cross-check.
package convert

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gosimple/slug"
	cli "github.com/urfave/cli/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"ebc/book"
	"ebc/common"
	"ebc/config"
	"ebc/content"
	"ebc/convert/epub"
	"ebc/state"
)

// RunBuild is the action behind "ebc build": resolve metadata, convert the
// chapters and assemble a container per requested channel.
func RunBuild(ctx context.Context, cmd *cli.Command) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("build")

	src, dst, err := sourceAndDestination(cmd)
	if err != nil {
		return err
	}

	channels, err := requestedChannels(cmd.String("channel"))
	if err != nil {
		return err
	}
	env.Channels = channels

	log.Info("Processing starting", zap.String("source", src), zap.String("destination", dst))
	defer func(start time.Time) {
		log.Info("Processing completed", zap.Duration("elapsed", time.Since(start)))
	}(time.Now())

	meta, cover, err := resolveBook(env, src, log)
	if err != nil {
		return err
	}

	var errs error
	for _, channel := range channels {
		if err := ctx.Err(); err != nil {
			return multierr.Append(errs, err)
		}
		errs = multierr.Append(errs, buildChannel(ctx, env, meta, cover, channel, src, dst, log))
	}
	return errs
}

// buildChannel produces a single container. A panic inside conversion or
// packaging is turned into an error so the other channel still runs.
func buildChannel(ctx context.Context, env *state.LocalEnv, meta *book.Metadata, cover *book.CoverInfo,
	channel common.Channel, src, dst string, log *zap.Logger) (err error) {

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("internal failure building %s channel: %v\n%s", channel, r, debug.Stack())
		}
	}()

	log = log.Named(channel.String())

	workDir, err := os.MkdirTemp("", "ebc-w-")
	if err != nil {
		return fmt.Errorf("unable to create working directory: %w", err)
	}
	defer os.RemoveAll(workDir)

	c := content.New(meta, cover, channel, src, workDir)

	if err := convertChapters(ctx, c, log); err != nil {
		return err
	}

	assets, err := CollectAssets(src, env.Cfg.Book.AssetDirs, log)
	if err != nil {
		return err
	}
	c.Assets = EnsureCoverAsset(assets, c.CoverAssetName(), cover.Path, log)
	log.Info("Content prepared", zap.Int("documents", len(c.Documents)), zap.Int("assets", len(c.Assets)))

	out := filepath.Join(dst, outputName(env.Cfg, meta.Title, channel))
	if err := epub.Generate(ctx, c, out, log); err != nil {
		return err
	}

	epub.Validate(ctx, &env.Cfg.Validator, out, log)
	return nil
}

// convertChapters converts every present chapter file in reading order.
// Absent files are skipped, the fixed order never changes.
func convertChapters(ctx context.Context, c *content.Content, log *zap.Logger) error {

	for _, chapter := range book.Spine {
		if err := ctx.Err(); err != nil {
			return err
		}

		srcPath := filepath.Join(c.SourceDir, chapter.Source)
		data, err := os.ReadFile(srcPath)
		if err != nil {
			if os.IsNotExist(err) {
				log.Debug("Chapter file not present, skipping", zap.String("file", chapter.Source))
				continue
			}
			return fmt.Errorf("unable to read %s: %w", srcPath, err)
		}

		opt := xhtmlOptions{
			Cover: chapter.Cover,
			TOC:   chapter.Name == "toc",
			KDP:   c.Channel.KDPMode(),
		}
		title, xhtml, err := convertDocument(data, opt, log)
		if err != nil {
			if errors.Is(err, errNoBody) {
				log.Warn("Chapter file has no body, skipping", zap.String("file", chapter.Source))
				continue
			}
			return fmt.Errorf("unable to convert %s: %w", chapter.Source, err)
		}

		c.Documents = append(c.Documents, content.Document{
			Chapter: chapter,
			Target:  chapter.TargetPath(),
			Title:   title,
			Data:    xhtml,
		})
		log.Debug("Converted chapter", zap.String("file", chapter.Source), zap.String("title", title))
	}
	return nil
}

// RunMetadata is the action behind "ebc metadata": resolve the metadata
// record, prompting for missing required fields, and validate the cover.
func RunMetadata(ctx context.Context, cmd *cli.Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("metadata")

	src, _, err := sourceAndDestination(cmd)
	if err != nil {
		return err
	}

	meta, cover, err := resolveBook(env, src, log)
	if err != nil {
		return err
	}

	log.Info("Metadata record is complete",
		zap.String("title", meta.Title),
		zap.String("author", meta.Author),
		zap.String("cover", cover.Path),
		zap.Int("cover_width", cover.Width),
		zap.Int("cover_height", cover.Height))
	return nil
}

// RunPrintCSS is the action behind "ebc printcss".
func RunPrintCSS(ctx context.Context, cmd *cli.Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("printcss")

	src, _, err := sourceAndDestination(cmd)
	if err != nil {
		return err
	}

	stats, err := ProcessPrintCSS(src, log)
	if err != nil {
		return err
	}

	log.Info("Print styles processed",
		zap.Int("added", stats.Added),
		zap.Int("updated", stats.Updated),
		zap.Int("skipped", stats.Skipped),
		zap.Int("missing", stats.Missing))
	return nil
}

// RunCheckImages is the action behind "ebc check". Fails when a referenced
// image never made it into the container.
func RunCheckImages(ctx context.Context, cmd *cli.Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("check")

	epubPath := cmd.Args().Get(0)
	if len(epubPath) == 0 {
		return errors.New("no container has been specified")
	}

	src := cmd.Args().Get(1)
	if len(src) == 0 {
		src = "."
	}
	src, err := filepath.Abs(src)
	if err != nil {
		return err
	}

	res, err := CheckImages(epubPath, src, env.Cfg.Book.AssetDirs, log)
	if err != nil {
		return err
	}
	res.Report(log)
	if n := len(res.MissingFromArchive); n != 0 {
		return fmt.Errorf("%d referenced image(s) missing from %s", n, epubPath)
	}
	return nil
}

// resolveBook loads and completes the metadata record and checks the cover.
func resolveBook(env *state.LocalEnv, src string, log *zap.Logger) (*book.Metadata, *book.CoverInfo, error) {

	resolver := book.Resolver{
		Log:    log,
		Prompt: &book.ConsolePrompter{In: os.Stdin, Out: os.Stdout},
	}
	meta, err := resolver.Resolve(filepath.Join(src, env.Cfg.Book.MetadataPath))
	if err != nil {
		return nil, nil, fmt.Errorf("unable to resolve metadata: %w", err)
	}

	cover, err := meta.ValidateCover(src)
	if err != nil {
		return nil, nil, fmt.Errorf("unable to validate cover image: %w", err)
	}
	return meta, cover, nil
}

// sourceAndDestination extracts positional SOURCEDIR and DESTDIR arguments,
// both default to the working directory.
func sourceAndDestination(cmd *cli.Command) (string, string, error) {

	src := cmd.Args().Get(0)
	if len(src) == 0 {
		src = "."
	}
	src, err := filepath.Abs(src)
	if err != nil {
		return "", "", err
	}

	dst := cmd.Args().Get(1)
	if len(dst) == 0 {
		dst = "."
	}
	if dst, err = filepath.Abs(dst); err != nil {
		return "", "", err
	}
	return src, dst, nil
}

func requestedChannels(name string) ([]common.Channel, error) {

	if len(name) == 0 || strings.EqualFold(name, "both") {
		return []common.Channel{common.ChannelStore, common.ChannelKDP}, nil
	}
	ch, err := common.ParseChannel(name)
	if err != nil {
		return nil, err
	}
	return []common.Channel{ch}, nil
}

// outputName derives the container file name from the book title, spaces
// become underscores and the channel contributes a suffix.
func outputName(cfg *config.Config, title string, channel common.Channel) string {

	name := strings.ReplaceAll(strings.TrimSpace(title), " ", "_")
	if cfg.Book.FileNameTransliterate {
		name = strings.ReplaceAll(slug.Make(name), "-", "_")
	}
	if len(name) == 0 {
		name = "book"
	}
	return config.CleanFileName(name) + "_" + channel.Suffix() + ".epub"
}
