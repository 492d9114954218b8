package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/noah-isme/shopping-cart/internal/cart"
)

const usage = `usage: cartctl <command> [flags]

commands:
  key                          print the unique key of the JSON record on stdin
  add    -cart ID [-instance]  merge the JSON record on stdin into the stored cart
  remove -cart ID -key KEY     remove a line item
  show   -cart ID [-instance]  print the stored cart as JSON
  clear  -cart ID [-instance]  delete the stored cart
`

type app struct {
	store *cart.Store
	in    io.Reader
	out   io.Writer
}

type cartView struct {
	Instance string        `json:"instance"`
	Items    []cart.Record `json:"items"`
	Count    string        `json:"count"`
	Total    string        `json:"total"`
}

func run(ctx context.Context, args []string, a *app) error {
	if len(args) == 0 {
		return errors.New(strings.TrimSpace(usage))
	}
	name, rest := args[0], args[1:]

	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	cartID := fs.String("cart", "", "cart identifier")
	instance := fs.String("instance", cart.DefaultInstance, "cart instance name")
	key := fs.String("key", "", "line item unique key")
	if err := fs.Parse(rest); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}

	switch name {
	case "key":
		item, err := readItem(a.in)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(a.out, item.UniqueKey())
		return err
	case "add":
		item, err := readItem(a.in)
		if err != nil {
			return err
		}
		c, err := a.store.Update(ctx, *cartID, *instance, func(c *cart.Cart) error {
			c.Put(item)
			return nil
		})
		if err != nil {
			return err
		}
		return writeCart(a.out, c)
	case "remove":
		if strings.TrimSpace(*key) == "" {
			return fmt.Errorf("remove: -key is required: %w", cart.ErrInvalidInput)
		}
		c, err := a.store.Update(ctx, *cartID, *instance, func(c *cart.Cart) error {
			return c.Remove(*key)
		})
		if err != nil {
			return err
		}
		return writeCart(a.out, c)
	case "show":
		c, err := a.store.Load(ctx, *cartID, *instance)
		if errors.Is(err, cart.ErrCartNotFound) {
			c = cart.NewCart(*instance)
		} else if err != nil {
			return err
		}
		return writeCart(a.out, c)
	case "clear":
		return a.store.Delete(ctx, *cartID, *instance)
	default:
		return fmt.Errorf("unknown command %q", name)
	}
}

// readItem decodes one JSON record. Numbers are kept as json.Number so
// prices, quantities and option values keep their exact text.
func readItem(r io.Reader) (cart.LineItem, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return cart.LineItem{}, fmt.Errorf("read record: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var rec cart.Record
	if err := dec.Decode(&rec); err != nil {
		return cart.LineItem{}, fmt.Errorf("decode record: %w", err)
	}
	return cart.FromRecord(rec)
}

func writeCart(w io.Writer, c *cart.Cart) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(cartView{
		Instance: c.Instance(),
		Items:    c.Records(),
		Count:    c.Count().String(),
		Total:    c.Total().StringFixed(2),
	})
}
