// Package invoice runs the per-document pipeline over a batch of supplier
// invoices.
//
// For every document the pipeline:
//   - resolves the supplier strategy (filename, then first page, then the
//     generic fallback with a STRATEGY_MISS warning);
//   - extracts text with the backend the strategy declares, retrying with OCR
//     when a text or hybrid extraction comes back empty;
//   - runs the strategy and normalizes what it could not find into errors;
//   - assigns VAT and categories, converts foreign currency;
//   - hands the invoice to the reconciliation engine.
//
// VAT precedence for a line, first match wins:
//  1. a rate printed on the line or fixed by the strategy for that line
//  2. the supplier's fixed rate
//  3. the dictionary row's default rate
//  4. keyword heuristics on the article
//  5. 21%
//
// Documents are processed sequentially. Cancellation is honored between
// documents; a document that has started always finishes.
package invoice

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/TascaBarea/ParsearFacturas-sub000/internal/category"
	"github.com/TascaBarea/ParsearFacturas-sub000/internal/currency"
	"github.com/TascaBarea/ParsearFacturas-sub000/internal/extractor"
	"github.com/TascaBarea/ParsearFacturas-sub000/internal/logger"
	"github.com/TascaBarea/ParsearFacturas-sub000/internal/parse"
	"github.com/TascaBarea/ParsearFacturas-sub000/internal/reconciliation"
	"github.com/TascaBarea/ParsearFacturas-sub000/internal/registry"
	"github.com/TascaBarea/ParsearFacturas-sub000/internal/textract"
	"github.com/TascaBarea/ParsearFacturas-sub000/pkg/models"
)

// Categories set by the pipeline itself.
const (
	CategoryWithholding = "RETENCION IRPF"
	CategoryFreight     = "PORTES"
)

// accountingCurrency is the currency every stored amount ends up in.
const accountingCurrency = "EUR"

// TextSource produces raw text for a document. *textract.Service implements it.
type TextSource interface {
	Text(ctx context.Context, path string, capability models.Capability) textract.Result
}

// RateSource quotes exchange rates and reports whether a fallback constant
// was used. *currency.Converter implements it.
type RateSource interface {
	Rate(ctx context.Context, from, to, date string) (float64, bool, error)
}

// RunOptions narrows a batch.
type RunOptions struct {
	// Only keeps the documents that resolve to this supplier. It is matched
	// like any registry lookup, so aliases work.
	Only string

	// Progress, when set, is called as soon as each invoice is finished.
	// scanned counts the documents looked at so far, filtered or not.
	Progress func(inv *models.Invoice, scanned int)
}

// Pipeline processes invoices one document at a time. It holds no
// per-document state; the resolver's pending list is the only thing that
// grows across documents.
type Pipeline struct {
	source   TextSource
	registry *registry.Registry
	resolver *category.Resolver
	rates    RateSource
	engine   *reconciliation.Engine
	log      zerolog.Logger
}

// NewPipeline wires the collaborators. rates may be nil, in which case
// foreign-currency invoices keep their printed amounts and carry a warning.
func NewPipeline(source TextSource, reg *registry.Registry, resolver *category.Resolver, rates RateSource) *Pipeline {
	if resolver == nil {
		resolver = category.NewResolver(nil, nil)
	}
	return &Pipeline{
		source:   source,
		registry: reg,
		resolver: resolver,
		rates:    rates,
		engine:   reconciliation.New(),
		log:      logger.WithComponent("pipeline"),
	}
}

// Resolver returns the category resolver, whose pending list is reported at
// the end of a batch.
func (p *Pipeline) Resolver() *category.Resolver {
	return p.resolver
}

// resolution is the outcome of strategy resolution for one document.
type resolution struct {
	strategy extractor.Strategy
	how      string

	// header is the hybrid extraction used for sniffing, reused as the
	// document text when it came from the backend the strategy needs.
	header textract.Result
}

func (p *Pipeline) resolve(ctx context.Context, path string) resolution {
	if s, ok := p.registry.GuessFromFilename(path); ok {
		return resolution{strategy: s, how: registry.ByFilename}
	}

	header := p.source.Text(ctx, path, models.CapHybrid)
	if s, ok := p.registry.GuessFromHeader(textract.FirstPage(header.Text)); ok {
		return resolution{strategy: s, how: registry.ByHeader, header: header}
	}
	return resolution{strategy: p.registry.Fallback(), how: registry.ByFallback, header: header}
}

// ProcessDocument runs the pipeline on one document. number is the
// document's 1-based position in the batch. Only an unreadable document is
// an error; every accounting outcome is recorded on the returned invoice.
func (p *Pipeline) ProcessDocument(ctx context.Context, path string, number int) (*models.Invoice, error) {
	const op = "ProcessDocument"

	if err := checkReadable(path); err != nil {
		return nil, NewPipelineError(op, path, err, "")
	}
	ctx = context.WithoutCancel(ctx)
	return p.process(ctx, path, number, p.resolve(ctx, path)), nil
}

func (p *Pipeline) process(ctx context.Context, path string, number int, res resolution) *models.Invoice {
	log := logger.WithDocument(p.log, path)
	desc := res.strategy.Descriptor()

	inv := &models.Invoice{
		SourcePath: path,
		Number:     number,
		Resolution: res.how,
		Strategy:   desc.Name,
		Supplier:   desc.Name,
		SupplierID: desc.FiscalID,
		IBAN:       desc.IBAN,
		Currency:   desc.InCurrency(),
	}
	if res.how == registry.ByFallback {
		inv.AddWarning(models.KindStrategyMiss, "no supplier recognized in filename or header, using %s", desc.Name)
	}
	log.Debug().
		Str("strategy", desc.Name).
		Str("resolution", res.how).
		Msg("Strategy resolved")

	text := p.text(ctx, path, desc.Capability, res.header)
	inv.Backend = text.Backend
	inv.RawText = text.Text
	if text.Empty() {
		inv.Status = models.StatusNoText
		inv.AddError(models.KindNoText, "no backend produced text after %d attempt(s)", len(text.Attempts))
		p.engine.Reconcile(inv, reconciliation.Options{})
		log.Warn().Int("attempts", len(text.Attempts)).Msg("No text extracted")
		return inv
	}

	extract(inv, res.strategy, text.Text)
	if desc.WithholdingPct > 0 {
		applyWithholding(inv, desc.WithholdingPct)
	}
	p.categorize(inv, desc)
	converted := p.convert(ctx, inv, log)

	opts := reconciliation.Options{
		ProrateFreight: desc.ProrateFreight,
		CorrectVAT:     desc.CorrectVAT,
	}
	// A fiscal table printed in another currency cannot be compared with
	// converted bases.
	if ft, ok := res.strategy.(extractor.FiscalTableExtractor); ok && !converted {
		opts.FiscalTable = ft.ExtractFiscalTable(text.Text)
	}
	p.engine.Reconcile(inv, opts)

	event := log.Info()
	if !inv.Status.IsOK() {
		event = log.Warn()
	}
	event.
		Str("supplier", inv.Supplier).
		Str("status", string(inv.Status)).
		Int("lines", len(inv.Lines)).
		Float64("calc_total", inv.CalcTotal).
		Msg("Document processed")
	return inv
}

// text fetches the strategy's text. The header extraction is reused when it
// already came from the requested backend.
func (p *Pipeline) text(ctx context.Context, path string, capability models.Capability, header textract.Result) textract.Result {
	fetched := len(header.Attempts) > 0

	var res textract.Result
	if fetched && (capability == models.CapHybrid || header.Backend == capability) {
		res = header
	} else {
		res = p.source.Text(ctx, path, capability)
	}

	retry := capability == models.CapText || capability == models.CapHybrid
	if res.Empty() && retry && !header.Empty() {
		header.Attempts = append(slices.Clone(res.Attempts), header.Attempts...)
		return header
	}
	if res.Empty() && retry && !triedOCR(header) && !triedOCR(res) {
		ocr := p.source.Text(ctx, path, models.CapOCR)
		ocr.Attempts = append(slices.Clone(res.Attempts), ocr.Attempts...)
		res = ocr
	}
	return res
}

func triedOCR(res textract.Result) bool {
	for _, a := range res.Attempts {
		if a.Backend == models.CapOCR {
			return true
		}
	}
	return false
}

// extract runs the strategy and records every header field it could not find.
func extract(inv *models.Invoice, s extractor.Strategy, text string) {
	lines, warnings := s.ExtractLines(text)
	inv.Lines = lines
	inv.Warnings = append(inv.Warnings, warnings...)

	if total, ok := s.ExtractTotal(text); ok {
		inv.Total = models.Float(total)
	}
	if date, ok := s.ExtractDate(text); ok {
		inv.Date = date
	} else {
		inv.AddError(models.KindSinFecha, "invoice date not found")
	}
	if ref, ok := s.ExtractReference(text); ok {
		inv.Reference = ref
	} else {
		inv.AddError(models.KindSinReferencia, "invoice number not found")
	}

	if inv.SupplierID == "" {
		if ie, ok := s.(extractor.IdentityExtractor); ok {
			if id, ok := ie.ExtractFiscalID(text); ok {
				inv.SupplierID = id
			}
		}
	}
}

// applyWithholding appends the IRPF line of a supplier that withholds, unless
// the strategy already produced one.
func applyWithholding(inv *models.Invoice, pct float64) {
	bases := make([]float64, 0, len(inv.Lines))
	for _, l := range inv.Lines {
		if l.Withholding {
			inv.AddNote(models.KindWithholding, "IRPF line printed on the invoice")
			return
		}
		bases = append(bases, l.Base)
	}
	base := parse.Sum(bases...)
	if base <= 0 {
		return
	}

	w := extractor.Withholding(base, pct)
	inv.Lines = append(inv.Lines, w)
	inv.AddNote(models.KindWithholding, "IRPF %s%% of %s: %s",
		strconv.FormatFloat(pct, 'f', -1, 64), parse.FormatMoney(base), parse.FormatMoney(w.Base))
}

// categorize assigns VAT and category to every line following the
// precedence chains.
func (p *Pipeline) categorize(inv *models.Invoice, desc extractor.Descriptor) {
	for i := range inv.Lines {
		l := &inv.Lines[i]

		decided := vatDecided(l.VATSource)
		if !decided && desc.FixedVAT != nil {
			l.VAT, l.VATSource = *desc.FixedVAT, models.VATFromFixed
			decided = true
		}

		switch {
		case l.Withholding:
			l.Category = CategoryWithholding
		case l.Freight && desc.ProrateFreight:
			l.Category = CategoryFreight
		case l.Category != "":
		case desc.FixedCategory != "":
			l.Category = desc.FixedCategory
		default:
			m := p.resolver.Lookup(inv.Supplier, l.Article, l.VAT)
			l.Category, l.CategoryID = m.Category, m.CategoryID
			if !decided {
				l.VAT, l.VATSource = m.VAT, m.Source
				decided = true
			}
		}

		if !decided {
			if vat, ok := category.GuessVAT(l.Article); ok {
				l.VAT, l.VATSource = vat, models.VATFromGuess
			} else {
				l.VAT, l.VATSource = category.DefaultVAT, models.VATFromDefault
			}
		}
	}
}

// vatDecided reports whether a line's VAT came from the document or the
// strategy and must not be overridden.
func vatDecided(src models.VATSource) bool {
	switch src {
	case models.VATFromLine, models.VATFromTable, models.VATFromFixed:
		return true
	}
	return false
}

// convert turns a foreign-currency invoice into euros with one rate for the
// invoice date. It reports whether amounts were converted.
func (p *Pipeline) convert(ctx context.Context, inv *models.Invoice, log zerolog.Logger) bool {
	from := inv.Currency
	if from == accountingCurrency {
		return false
	}
	if p.rates == nil {
		inv.AddWarning(models.KindCurrencyConverted, "no rate source configured, amounts left in %s", from)
		return false
	}

	rate, fallback, err := p.rates.Rate(ctx, from, accountingCurrency, inv.Date)
	if err != nil {
		log.Warn().Err(err).Str("from", from).Msg("Currency conversion failed")
		inv.AddWarning(models.KindCurrencyConverted, "no %s/%s rate: %v; amounts left in %s", from, accountingCurrency, err, from)
		return false
	}

	conv := currency.Conversion{From: from, To: accountingCurrency, Rate: rate, Fallback: fallback}
	note := conv.Note()
	for i := range inv.Lines {
		l := &inv.Lines[i]
		l.Base = currency.ApplyRate(l.Base, rate)
		if l.UnitPrice != nil {
			l.UnitPrice = models.Float(currency.ApplyRate(*l.UnitPrice, rate))
		}
		l.Note = joinNote(l.Note, note)
	}

	printed := "not printed"
	if inv.Total != nil {
		printed = parse.FormatMoney(*inv.Total) + " " + from
		inv.Total = models.Float(currency.ApplyRate(*inv.Total, rate))
	}
	source := "oracle"
	if fallback {
		source = "fallback"
	}
	inv.AddNote(models.KindCurrencyConverted, "%s→%s @%s (%s rate), printed total %s",
		from, accountingCurrency, strconv.FormatFloat(rate, 'f', -1, 64), source, printed)
	inv.Currency = accountingCurrency
	return true
}

func joinNote(existing, note string) string {
	if existing == "" {
		return note
	}
	return existing + "; " + note
}

// Run processes paths in order and returns their invoices in the same order,
// numbered from 1. Unreadable documents are skipped and reported in the
// returned error. When ctx is canceled the invoices finished so far are
// returned together with ErrCanceled and the skipped documents' errors.
func (p *Pipeline) Run(ctx context.Context, paths []string, opts RunOptions) ([]*models.Invoice, error) {
	const op = "Run"

	if len(paths) == 0 {
		return nil, NewPipelineError(op, "", ErrNoInput, "")
	}

	var only string
	if opts.Only != "" {
		s, ok := p.registry.Lookup(opts.Only)
		if !ok {
			return nil, NewPipelineError(op, "", ErrUnknownSupplier, opts.Only)
		}
		only = s.Descriptor().Name
	}

	start := time.Now()
	p.log.Info().
		Int("documents", len(paths)).
		Str("only", only).
		Msg("Batch started")

	var (
		invoices []*models.Invoice
		errs     []error
	)
	for i, path := range paths {
		if err := ctx.Err(); err != nil {
			p.log.Warn().
				Int("processed", len(invoices)).
				Int("skipped", len(errs)).
				Int("documents", len(paths)).
				Msg("Batch canceled")
			errs = append(errs, NewPipelineError(op, "", fmt.Errorf("%w: %w", ErrCanceled, err), ""))
			return invoices, errors.Join(errs...)
		}

		if err := checkReadable(path); err != nil {
			p.log.Error().Err(err).Str("document", filepath.Base(path)).Msg("Document skipped")
			errs = append(errs, NewPipelineError(op, path, err, ""))
			continue
		}

		docCtx := context.WithoutCancel(ctx)
		res := p.resolve(docCtx, path)
		if only != "" && res.strategy.Descriptor().Name != only {
			continue
		}
		inv := p.process(docCtx, path, len(invoices)+1, res)
		invoices = append(invoices, inv)
		if opts.Progress != nil {
			opts.Progress(inv, i+1)
		}
	}

	p.log.Info().
		Int("invoices", len(invoices)).
		Int("skipped", len(errs)).
		Dur("duration", time.Since(start)).
		Msg("Batch finished")
	return invoices, errors.Join(errs...)
}

// ListInputs returns the supported documents directly inside dir, sorted by
// name. Subdirectories are not visited.
func ListInputs(dir string) ([]string, error) {
	const op = "ListInputs"

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, NewPipelineError(op, dir, fmt.Errorf("%w: %w", ErrUnreadableFile, err), "")
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || !textract.IsSupported(e.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	if len(paths) == 0 {
		return nil, NewPipelineError(op, dir, ErrNoInput, "")
	}
	return paths, nil
}

func checkReadable(path string) error {
	if !textract.IsSupported(path) {
		return fmt.Errorf("%w: unsupported extension %q", ErrUnreadableFile, filepath.Ext(path))
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnreadableFile, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnreadableFile, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: is a directory", ErrUnreadableFile)
	}
	return nil
}
