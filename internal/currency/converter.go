// Package currency converts foreign-currency invoice amounts into euros.
package currency

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/TascaBarea/ParsearFacturas-sub000/internal/logger"
	"github.com/TascaBarea/ParsearFacturas-sub000/internal/parse"
)

// Config configures a Converter.
type Config struct {
	Timeout   time.Duration      // per oracle call, at most 5s
	Fallbacks map[string]float64 // "USD/EUR" -> 1.08
	Breaker   BreakerConfig
}

// Conversion is the result of converting one amount.
type Conversion struct {
	Original float64
	Amount   float64
	From     string
	To       string
	Rate     float64
	Fallback bool // true when the fallback constant was used
}

// Note renders the conversion for the line's note field.
func (c Conversion) Note() string {
	return fmt.Sprintf("CURRENCY_CONVERTED %s→%s @%s", c.From, c.To, strconv.FormatFloat(c.Rate, 'f', -1, 64))
}

// Converter converts amounts with an external rate source, a circuit breaker
// and a last-resort constant. Rates are cached per pair and date for the
// lifetime of the converter.
type Converter struct {
	source  RateSource
	cfg     Config
	breaker *Breaker
	log     zerolog.Logger

	mu    sync.Mutex
	cache map[string]float64
}

// NewConverter creates a converter. source may be nil, in which case only
// the fallback constants are used.
func NewConverter(source RateSource, cfg Config) *Converter {
	if cfg.Timeout <= 0 || cfg.Timeout > 5*time.Second {
		cfg.Timeout = 5 * time.Second
	}
	return &Converter{
		source:  source,
		cfg:     cfg,
		breaker: NewBreaker(cfg.Breaker),
		log:     logger.WithComponent("currency"),
		cache:   make(map[string]float64),
	}
}

// Rate returns the from/to quote for date and whether the fallback was used.
func (c *Converter) Rate(ctx context.Context, from, to, date string) (float64, bool, error) {
	const op = "Converter.Rate"

	from, to = strings.ToUpper(from), strings.ToUpper(to)
	if from == to {
		return 1, false, nil
	}

	key := from + "/" + to + "@" + date
	c.mu.Lock()
	if rate, ok := c.cache[key]; ok {
		c.mu.Unlock()
		return rate, false, nil
	}
	c.mu.Unlock()

	if c.source != nil {
		var rate float64
		err := c.breaker.Execute(func() error {
			callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
			defer cancel()
			r, err := c.source.Rate(callCtx, from, to, date)
			rate = r
			return err
		})
		if err == nil {
			c.mu.Lock()
			c.cache[key] = rate
			c.mu.Unlock()
			return rate, false, nil
		}
		c.log.Warn().
			Err(err).
			Str("pair", from+"/"+to).
			Str("date", date).
			Str("breaker", c.breaker.State().String()).
			Msg("Rate oracle unavailable, using fallback rate")
	}

	rate, ok := c.cfg.Fallbacks[from+"/"+to]
	if !ok || rate <= 0 {
		return 0, true, fmt.Errorf("%s: no fallback rate for %s/%s", op, from, to)
	}
	return rate, true, nil
}

// Convert converts amount from one currency to another at the date's rate.
// The result is rounded to cents.
func (c *Converter) Convert(ctx context.Context, amount float64, from, to, date string) (Conversion, error) {
	rate, fallback, err := c.Rate(ctx, from, to, date)
	if err != nil {
		return Conversion{}, err
	}
	return Conversion{
		Original: amount,
		Amount:   ApplyRate(amount, rate),
		From:     strings.ToUpper(from),
		To:       strings.ToUpper(to),
		Rate:     rate,
		Fallback: fallback,
	}, nil
}

// ApplyRate divides amount by a from/to quote and rounds to cents.
func ApplyRate(amount, rate float64) float64 {
	if rate == 0 {
		return 0
	}
	return parse.Round2(amount / rate)
}
