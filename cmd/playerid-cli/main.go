// Command playerid-cli is a small batch runner around the Gallery
// Store: it loads an optional .ini config (C10), drives the
// long-running gallery maintenance passes (C1's RemoveUnavailableImages
// and RemoveDuplicateGalleryImages) against a real video file with a
// progressbar.ProgressBar the way the teacher's video.go drives frame
// decoding, and prints per-player status lines colored by mitchellh/
// colorstring, with names truncated to fit the detected terminal width.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/mitchellh/colorstring"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"

	"github.com/nmichlo/playerid-go/pkg/playerid/gallery"
	"github.com/nmichlo/playerid-go/pkg/playerid/model"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "list-players":
		err = runListPlayers(args)
	case "remove-unavailable":
		err = runRemoveUnavailable(args)
	case "remove-duplicates":
		err = runRemoveDuplicates(args)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		colorstring.Fprintln(os.Stderr, fmt.Sprintf("[red]playerid-cli: %v[reset]", err))
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: playerid-cli <list-players|remove-unavailable|remove-duplicates> -gallery <path> [-config <ini>]")
}

func loadConfig(path string) *model.Config {
	cfg := model.DefaultConfig()
	if path == "" {
		return cfg
	}
	if err := cfg.LoadINI(path); err != nil {
		log.Printf("playerid-cli: ini config %s not applied: %v", path, err)
	}
	return cfg
}

func termWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 {
		return 80
	}
	return w
}

func runListPlayers(args []string) error {
	fs := flag.NewFlagSet("list-players", flag.ExitOnError)
	galleryPath := fs.String("gallery", "", "path to gallery JSON file")
	configPath := fs.String("config", "", "optional ini config file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *galleryPath == "" {
		return fmt.Errorf("-gallery is required")
	}
	_ = loadConfig(*configPath)

	store := gallery.NewStore(*galleryPath)
	if err := store.Load(); err != nil {
		return fmt.Errorf("load gallery: %w", err)
	}

	width := termWidth()
	for _, p := range store.ListPlayers(false) {
		name := p.Name
		if maxNameLen := width - len(p.ID) - 2; maxNameLen > 0 && len(name) > maxNameLen {
			name = name[:maxNameLen]
		}
		line := fmt.Sprintf("[cyan]%s[reset]  [light_gray]%s[reset]", p.ID, name)
		fmt.Println(colorstring.Color(line))
	}
	return nil
}

func runRemoveUnavailable(args []string) error {
	fs := flag.NewFlagSet("remove-unavailable", flag.ExitOnError)
	galleryPath := fs.String("gallery", "", "path to gallery JSON file")
	configPath := fs.String("config", "", "optional ini config file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *galleryPath == "" {
		return fmt.Errorf("-gallery is required")
	}
	_ = loadConfig(*configPath)

	store := gallery.NewStore(*galleryPath)
	if err := store.Load(); err != nil {
		return fmt.Errorf("load gallery: %w", err)
	}

	provider := gallery.NewVideoFileFrameProvider()
	defer provider.Close()

	var bar *progressbar.ProgressBar
	stats, err := store.RemoveUnavailableImages(provider, func(done, total int) {
		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetDescription("checking reference frames"),
				progressbar.OptionShowCount(),
				progressbar.OptionSetWidth(termWidth()/2),
				progressbar.OptionClearOnFinish(),
			)
		}
		_ = bar.Set(done)
	})
	if err != nil {
		return fmt.Errorf("remove unavailable images: %w", err)
	}

	colorstring.Println(fmt.Sprintf("[yellow]removed %d reference frame(s) across %d player(s)[reset]",
		stats.RemovedCount, stats.PlayersTouched))
	return nil
}

func runRemoveDuplicates(args []string) error {
	fs := flag.NewFlagSet("remove-duplicates", flag.ExitOnError)
	galleryPath := fs.String("gallery", "", "path to gallery JSON file")
	configPath := fs.String("config", "", "optional ini config file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *galleryPath == "" {
		return fmt.Errorf("-gallery is required")
	}
	_ = loadConfig(*configPath)

	store := gallery.NewStore(*galleryPath)
	if err := store.Load(); err != nil {
		return fmt.Errorf("load gallery: %w", err)
	}

	provider := gallery.NewVideoFileFrameProvider()
	defer provider.Close()

	stats, err := store.RemoveDuplicateGalleryImages(provider)
	if err != nil {
		return fmt.Errorf("remove duplicate images: %w", err)
	}

	colorstring.Println(fmt.Sprintf("[green]removed %d duplicate reference frame(s) across %d player(s)[reset]",
		stats.RemovedCount, stats.PlayersTouched))
	return nil
}
