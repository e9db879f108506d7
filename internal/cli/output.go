package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nbd-wtf/go-nostr"

	"wildsats-api/internal/catalog"
	"wildsats-api/internal/model"
)

// Output formats command results as text or JSON.
type Output struct {
	format string
	w      io.Writer
}

// NewOutput creates a new Output formatter.
func NewOutput(format string, w io.Writer) *Output {
	return &Output{format: format, w: w}
}

// Print outputs data in the configured format.
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
		return
	}

	switch v := data.(type) {
	case *model.PlayerRecord:
		o.printPlayer(v)
	case *model.PurchaseResult:
		o.printPurchase(v)
	case []catalog.Animal:
		o.printCatalog(v)
	case model.Profile:
		o.printProfile(v)
	case characterList:
		fmt.Fprintf(o.w, "Characters: %s\n", strings.Join(v, ", "))
	case inventoryList:
		fmt.Fprintf(o.w, "Inventory (%d): %s\n", len(v), strings.Join(v, ", "))
	case *nostr.Event:
		o.printNote(v)
	default:
		o.printJSON(data)
	}
}

// PrintMessage outputs a simple message.
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		o.printJSON(map[string]string{"message": msg})
		return
	}
	fmt.Fprintln(o.w, msg)
}

type characterList []string

type inventoryList []string

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printPlayer(p *model.PlayerRecord) {
	fmt.Fprintf(o.w, "Player: %s (%s)\n", p.DisplayName, p.Identity)
	fmt.Fprintf(o.w, "Characters: %s\n", strings.Join(p.Characters, ", "))
	fmt.Fprintf(o.w, "Inventory (%d): %s\n", len(p.Inventory), strings.Join(p.Inventory, ", "))
	fmt.Fprintf(o.w, "Last login: %s\n", p.LastLogin.Format(time.RFC3339))
}

func (o *Output) printPurchase(r *model.PurchaseResult) {
	if r.AlreadyOwned {
		fmt.Fprintf(o.w, "You already own %s\n", r.Character)
	} else {
		fmt.Fprintf(o.w, "Bought %s\n", r.Character)
	}
	fmt.Fprintf(o.w, "Characters: %s\n", strings.Join(r.Characters, ", "))
}

func (o *Output) printCatalog(animals []catalog.Animal) {
	for _, a := range animals {
		fmt.Fprintf(o.w, "%-8s price %4d  health %3d  speed %2d  jump %2d  %s (%s)\n",
			a.Name, a.Price, a.Health, a.Speed, a.Jump, a.Ability, a.UsesLabel())
	}
}

func (o *Output) printProfile(p model.Profile) {
	fmt.Fprintf(o.w, "Name: %s\n", p.NameOr(model.AnonymousName))
	if avatar := p.AvatarURI(); avatar != "" {
		fmt.Fprintf(o.w, "Avatar: %s\n", avatar)
	}
	if p.About != "" {
		fmt.Fprintf(o.w, "About: %s\n", p.About)
	}
}

func (o *Output) printNote(ev *nostr.Event) {
	ts := time.Unix(int64(ev.CreatedAt), 0).UTC().Format(time.RFC3339)
	author := ev.PubKey
	if len(author) > 12 {
		author = author[:12]
	}
	fmt.Fprintf(o.w, "[%s] %s: %s\n", ts, author, ev.Content)
}
