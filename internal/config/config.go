// Package config resolves spec.md §9's fixed-point Open Question: each
// symbol carries a tick size (as a decimal places count) picked up at
// startup, the way the teacher's cmd/client/client.go already parses CLI
// flags with the standard flag package, generalized here into a loaded
// Config struct instead of ad hoc flags scattered across main().
package config

import (
	"flag"
	"fmt"

	"github.com/shopspring/decimal"

	"fenrir/internal/common"
)

// Symbol describes one tradeable instrument's tick size: Decimals places
// after the decimal point define one common.Price tick (Decimals: 2 means
// one tick is 0.01).
type Symbol struct {
	Name     string
	Decimals int32
}

// scale is 10^Decimals, used to convert between decimal.Decimal and
// common.Price ticks.
func (s Symbol) scale() decimal.Decimal {
	return decimal.New(1, s.Decimals)
}

// ParsePrice converts a decimal string from the API boundary into a
// fixed-point common.Price, rounding to the nearest tick (spec.md §3.1).
func (s Symbol) ParsePrice(input string) (common.Price, error) {
	d, err := decimal.NewFromString(input)
	if err != nil {
		return 0, fmt.Errorf("invalid price %q: %w", input, err)
	}
	ticks := d.Mul(s.scale()).Round(0)
	return common.Price(ticks.IntPart()), nil
}

// FormatPrice converts a common.Price back to a decimal string for JSON
// responses.
func (s Symbol) FormatPrice(p common.Price) string {
	return decimal.NewFromInt(int64(p)).Div(s.scale()).StringFixed(s.Decimals)
}

// Config is the process-wide configuration resolved from CLI flags.
type Config struct {
	WireAddress     string
	WirePort        int
	HTTPAddress     string
	Workers         int
	DebugInvariants bool
	Symbols         []Symbol
}

// defaultSymbols seeds the exchange with the instrument the teacher's
// cmd/client/client.go defaults to ("AAPL") plus the pair used throughout
// spec.md's worked scenarios and original_source's demo ("BTC-USDT").
func defaultSymbols() []Symbol {
	return []Symbol{
		{Name: "AAPL", Decimals: 2},
		{Name: "BTC-USDT", Decimals: 2},
	}
}

// Load parses CLI flags into a Config. args excludes the program name
// (pass os.Args[1:] in production, a fixed slice in tests).
func Load(args []string) (Config, error) {
	fs := flag.NewFlagSet("fenrir", flag.ContinueOnError)

	wireAddress := fs.String("wire-address", "0.0.0.0", "TCP wire protocol bind address")
	wirePort := fs.Int("wire-port", 9001, "TCP wire protocol bind port")
	httpAddress := fs.String("http-address", "0.0.0.0:8080", "HTTP/WebSocket bind address")
	workers := fs.Int("workers", 10, "wire protocol connection worker pool size")
	debugInvariants := fs.Bool("debug-invariants", false, "run the invariant checker after every mutation")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	return Config{
		WireAddress:     *wireAddress,
		WirePort:        *wirePort,
		HTTPAddress:     *httpAddress,
		Workers:         *workers,
		DebugInvariants: *debugInvariants,
		Symbols:         defaultSymbols(),
	}, nil
}

// SymbolByName looks up a configured symbol's tick table entry.
func (c Config) SymbolByName(name string) (Symbol, bool) {
	for _, s := range c.Symbols {
		if s.Name == name {
			return s, true
		}
	}
	return Symbol{}, false
}
