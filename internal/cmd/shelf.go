package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/nguyengg/xchm/internal/book"
	"github.com/nguyengg/xchm/internal/config"
)

type Shelf struct {
	List   ShelfList   `command:"list" alias:"ls" description:"list the extracted books"`
	Remove ShelfRemove `command:"remove" alias:"rm" description:"delete extracted books by fingerprint"`
	Prune  ShelfPrune  `command:"prune" description:"delete staging directories and incomplete extractions"`
}

func shelf() (book.Shelf, error) {
	cfg, err := config.ForBookshelf()
	if err != nil {
		return book.Shelf{}, err
	}

	return book.Shelf{Root: cfg.Root}, nil
}

type ShelfList struct{}

func (c *ShelfList) Execute(args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("unknown positional arguments: %s", strings.Join(args, " "))
	}

	s, err := shelf()
	if err != nil {
		return err
	}

	entries, err := s.List()
	if err != nil {
		return err
	}

	var total int64
	for _, e := range entries {
		status := ""
		if !e.Complete {
			status = " (incomplete)"
		}

		fmt.Printf("%s\t%s\t%s%s\n", e.Fingerprint, humanize.Bytes(uint64(e.Size)), e.Title, status)
		total += e.Size
	}

	log.Printf(`%d books (%s) in "%s"`, len(entries), humanize.Bytes(uint64(total)), s.Root)
	return nil
}

type ShelfRemove struct {
	Yes  bool `short:"y" long:"yes" description:"do not prompt for confirmation"`
	Args struct {
		Fingerprints []string `positional-arg-name:"fingerprint" description:"fingerprints as printed by shelf list" required:"yes"`
	} `positional-args:"yes"`
}

func (c *ShelfRemove) Execute(args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("unknown positional arguments: %s", strings.Join(args, " "))
	}

	s, err := shelf()
	if err != nil {
		return err
	}

	// to prevent accidental deletion, prompt for each book.
	prompt := !c.Yes
	reader := bufio.NewReader(os.Stdin)

	success := 0
	n := len(c.Args.Fingerprints)

fpLoop:
	for i, fp := range c.Args.Fingerprints {
	promptLoop:
		for prompt {
			fmt.Printf("Confirm deletion of \"%s\":\n", s.Path(fp))
			fmt.Printf("\tY/y: to proceed with deletion\n")
			fmt.Printf("\tN/n: to skip this book\n")
			fmt.Printf("\tF/f: to start deleting without prompt for all remaining books including this\n")

			line, err := reader.ReadString('\n')
			if err != nil {
				if errors.Is(err, io.EOF) {
					log.Printf("stdin ended; successfully deleted %d/%d books", success, n)
					return nil
				}
				return fmt.Errorf("read prompt error: %w", err)
			}
			switch strings.ToLower(strings.TrimSpace(line)) {
			case "y":
				break promptLoop
			case "n":
				success++
				continue fpLoop
			case "f":
				prompt = false
			}
		}

		if err = s.Remove(fp); err != nil {
			log.Printf("%d/%d: remove %s error: %v", i+1, n, fp, err)
			continue
		}

		success++
	}

	log.Printf("successfully deleted %d/%d books", success, n)
	return nil
}

type ShelfPrune struct{}

func (c *ShelfPrune) Execute(args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("unknown positional arguments: %s", strings.Join(args, " "))
	}

	s, err := shelf()
	if err != nil {
		return err
	}

	removed, err := s.Prune()
	for _, path := range removed {
		log.Printf(`removed "%s"`, path)
	}
	if err != nil {
		return err
	}

	log.Printf("pruned %d directories", len(removed))
	return nil
}
