package cardspec

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/driftwood-games/houserules/internal/rule"
)

// LoadMode controls how errors are handled during deck loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first bad card.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll compiles every card and reports all errors.
	LoadModeCollectAll
)

// Deck is a compiled set of cards, ordered by card ID.
type Deck struct {
	Cards     []rule.CardData
	FileCount int
}

// Lookup returns the card with the given ID, or nil.
func (d *Deck) Lookup(cardID string) *rule.CardData {
	for i := range d.Cards {
		if d.Cards[i].CardID == cardID {
			return &d.Cards[i]
		}
	}
	return nil
}

// LoadDeck compiles every card defined under the top-level "card" struct of
// the CUE package in dir. Cards are returned in ID order so deck contents are
// deterministic regardless of file layout.
func LoadDeck(dir string, mode LoadMode) (*Deck, []error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{fmt.Errorf("deck directory not found: %s", dir)}
	}
	if err != nil {
		return nil, []error{fmt.Errorf("accessing deck directory: %w", err)}
	}
	if !info.IsDir() {
		return nil, []error{fmt.Errorf("not a directory: %s", dir)}
	}

	cueFiles, err := findCUEFiles(dir)
	if err != nil {
		return nil, []error{fmt.Errorf("scanning deck directory: %w", err)}
	}
	if len(cueFiles) == 0 {
		return nil, []error{fmt.Errorf("no CUE files found in %s", dir)}
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, []error{fmt.Errorf("no CUE instances loaded from %s", dir)}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{fmt.Errorf("loading CUE files: %w", inst.Err)}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, []error{formatCUEError(err)}
	}

	deck := &Deck{FileCount: len(cueFiles)}
	var errs []error

	cardsVal := value.LookupPath(cue.ParsePath("card"))
	if !cardsVal.Exists() {
		return nil, []error{fmt.Errorf("no top-level card struct found in %s", dir)}
	}

	iter, err := cardsVal.Fields()
	if err != nil {
		return nil, []error{formatCUEError(err)}
	}
	for iter.Next() {
		card, cerr := CompileCard(iter.Value())
		if cerr != nil {
			errs = append(errs, cerr)
			if mode == LoadModeFailFast {
				return deck, errs
			}
			continue
		}
		deck.Cards = append(deck.Cards, *card)
	}

	sort.Slice(deck.Cards, func(i, j int) bool {
		return deck.Cards[i].CardID < deck.Cards[j].CardID
	})
	return deck, errs
}

// findCUEFiles walks the directory and returns all .cue file paths.
func findCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}
