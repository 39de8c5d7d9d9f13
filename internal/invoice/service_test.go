package invoice_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TascaBarea/ParsearFacturas-sub000/internal/category"
	"github.com/TascaBarea/ParsearFacturas-sub000/internal/invoice"
	"github.com/TascaBarea/ParsearFacturas-sub000/internal/registry"
	"github.com/TascaBarea/ParsearFacturas-sub000/internal/suppliers"
	"github.com/TascaBarea/ParsearFacturas-sub000/internal/textract"
	"github.com/TascaBarea/ParsearFacturas-sub000/pkg/models"
)

const (
	madruenoPDF  = "LICORES MADRUEÑO 2024-0412.pdf"
	cerroAltoPDF = "Bodegas Cerro Alto CA-24-0311.pdf"
	bebidasPDF   = "bebidas del centro 240877.pdf"
	alquilerPDF  = "alquiler local abril 2024.pdf"
	tableBookPDF = "TableBook invoice March.pdf"
	ticketJPG    = "ticket_0001.jpg"
)

// fakeSource serves canned text per file name and backend. Hybrid requests
// behave like the real dispatcher: tables first, OCR when tables are empty.
type fakeSource struct {
	docs  map[string]map[models.Capability]string
	calls []models.Capability
}

func (f *fakeSource) Text(_ context.Context, path string, c models.Capability) textract.Result {
	f.calls = append(f.calls, c)
	doc := f.docs[filepath.Base(path)]

	if c != models.CapHybrid {
		return textract.Result{
			Text:     doc[c],
			Backend:  c,
			Attempts: []textract.Attempt{{Backend: c, Chars: len(doc[c])}},
		}
	}
	res := textract.Result{
		Text:     doc[models.CapTables],
		Backend:  models.CapTables,
		Attempts: []textract.Attempt{{Backend: models.CapTables, Chars: len(doc[models.CapTables])}},
	}
	if res.Text != "" {
		return res
	}
	res.Text, res.Backend = doc[models.CapOCR], models.CapOCR
	res.Attempts = append(res.Attempts, textract.Attempt{Backend: models.CapOCR, Chars: len(res.Text)})
	return res
}

type rateCall struct {
	from, to, date string
}

type fakeRates struct {
	rate  float64
	err   error
	calls []rateCall
}

func (f *fakeRates) Rate(_ context.Context, from, to, date string) (float64, bool, error) {
	f.calls = append(f.calls, rateCall{from, to, date})
	if f.err != nil {
		return 0, false, f.err
	}
	return f.rate, false, nil
}

type env struct {
	dir    string
	source *fakeSource
	rates  *fakeRates
	p      *invoice.Pipeline
}

func newEnv(t *testing.T, docs map[string]map[models.Capability]string) *env {
	t.Helper()

	dir := t.TempDir()
	for name := range docs {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("%PDF-1.4"), 0o644))
	}

	reg, err := suppliers.NewRegistry([]string{"B99999999"})
	require.NoError(t, err)

	dict := category.NewDictionary([]category.Entry{
		{Supplier: "LICORES MADRUEÑO", Article: "RON ZACAPA", Category: "LICORES"},
		{Supplier: "LICORES MADRUEÑO", Article: "GINEBRA", Category: "LICORES"},
		{Supplier: "BEBIDAS DEL CENTRO", Article: "AGUA", Category: "REFRESCOS"},
		{Supplier: "BEBIDAS DEL CENTRO", Article: "ZUMO NARANJA", Category: "REFRESCOS"},
		{Supplier: "BEBIDAS DEL CENTRO", Article: "VASOS PLASTICO", Category: "MENAJE"},
	})

	e := &env{
		dir:    dir,
		source: &fakeSource{docs: docs},
		rates:  &fakeRates{rate: 1.08},
	}
	e.p = invoice.NewPipeline(e.source, reg, category.NewResolver(dict, nil), e.rates)
	return e
}

func (e *env) path(name string) string {
	return filepath.Join(e.dir, name)
}

func (e *env) process(t *testing.T, name string) *models.Invoice {
	t.Helper()
	inv, err := e.p.ProcessDocument(context.Background(), e.path(name), 1)
	require.NoError(t, err)
	require.NotNil(t, inv)
	return inv
}

func facsimile(t *testing.T, name string) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return string(b)
}

func only(c models.Capability, text string) map[models.Capability]string {
	return map[models.Capability]string{c: text}
}

func scenarios(t *testing.T) map[string]map[models.Capability]string {
	return map[string]map[models.Capability]string{
		madruenoPDF:  only(models.CapText, facsimile(t, "madrueno.txt")),
		cerroAltoPDF: only(models.CapTables, facsimile(t, "cerro_alto.txt")),
		bebidasPDF:   only(models.CapTables, facsimile(t, "bebidas.txt")),
		alquilerPDF:  only(models.CapText, facsimile(t, "alquiler.txt")),
		tableBookPDF: only(models.CapText, facsimile(t, "tablebook.txt")),
		ticketJPG:    only(models.CapOCR, facsimile(t, "ticket.txt")),
	}
}

func categories(lines []models.InvoiceLine) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l.Category
	}
	return out
}

func hasPrefix(entries []string, kind string) bool {
	for _, e := range entries {
		if e == kind || len(e) > len(kind) && e[:len(kind)+1] == kind+":" {
			return true
		}
	}
	return false
}

func TestSingleRateInvoice(t *testing.T) {
	e := newEnv(t, scenarios(t))
	inv := e.process(t, madruenoPDF)

	assert.Equal(t, models.StatusOK, inv.Status)
	assert.Equal(t, 782.33, inv.CalcTotal)
	assert.Equal(t, "LICORES MADRUEÑO", inv.Supplier)
	assert.Equal(t, "B86705126", inv.SupplierID)
	assert.Equal(t, "12/04/2024", inv.Date)
	assert.Equal(t, "2024/A/0412", inv.Reference)
	assert.Equal(t, registry.ByFilename, inv.Resolution)
	assert.Equal(t, models.CapText, inv.Backend)
	assert.Equal(t, "EUR", inv.Currency)
	assert.Empty(t, inv.Errors)
	assert.Empty(t, inv.Warnings)

	require.Len(t, inv.Lines, 3)
	assert.Equal(t, []string{"LICORES", "LICORES", models.CategoryPending}, categories(inv.Lines))
	for _, l := range inv.Lines {
		assert.Equal(t, 21, l.VAT)
		assert.Equal(t, models.VATFromFixed, l.VATSource)
	}
	assert.Equal(t, 1, e.p.Resolver().Pending().Len())
	assert.Equal(t, []models.Capability{models.CapText}, e.source.calls)
}

func TestFreightIsProrated(t *testing.T) {
	e := newEnv(t, scenarios(t))
	inv := e.process(t, cerroAltoPDF)

	assert.Equal(t, models.StatusOK, inv.Status)
	assert.Equal(t, 255.87, inv.CalcTotal)
	require.Len(t, inv.Lines, 2)
	assert.Equal(t, 105.73, inv.Lines[0].Base)
	assert.Equal(t, 105.73, inv.Lines[1].Base)
	for _, l := range inv.Lines {
		assert.False(t, l.Freight)
	}
	assert.NotContains(t, categories(inv.Lines), invoice.CategoryFreight)
}

func TestVATCorrectedFromFiscalTable(t *testing.T) {
	e := newEnv(t, scenarios(t))
	inv := e.process(t, bebidasPDF)

	assert.Equal(t, models.StatusOK, inv.Status)
	assert.Equal(t, 85.25, inv.CalcTotal)
	require.Len(t, inv.Lines, 3)
	assert.Equal(t, 10, inv.Lines[0].VAT)
	assert.Equal(t, 10, inv.Lines[1].VAT)
	assert.Equal(t, 21, inv.Lines[2].VAT)
	assert.Equal(t, models.VATFromTable, inv.Lines[2].VATSource)
	assert.True(t, inv.Lines[2].HasWarning(models.KindVATGuessed))
	assert.True(t, hasPrefix(inv.Warnings, models.KindVATMismatch))
	assert.Equal(t, []string{"REFRESCOS", "REFRESCOS", "MENAJE"}, categories(inv.Lines))
}

func TestWithholdingLineAppended(t *testing.T) {
	e := newEnv(t, scenarios(t))
	inv := e.process(t, alquilerPDF)

	assert.Equal(t, models.StatusOK, inv.Status)
	assert.Equal(t, 510.00, inv.CalcTotal)
	require.Len(t, inv.Lines, 2)

	rent, irpf := inv.Lines[0], inv.Lines[1]
	assert.Equal(t, 500.00, rent.Base)
	assert.Equal(t, 21, rent.VAT)
	assert.Equal(t, "ALQUILER", rent.Category)

	assert.True(t, irpf.Withholding)
	assert.True(t, irpf.Correction)
	assert.Equal(t, -95.00, irpf.Base)
	assert.Equal(t, 0, irpf.VAT)
	assert.Equal(t, invoice.CategoryWithholding, irpf.Category)
	assert.True(t, hasPrefix(inv.Notes, models.KindWithholding))
}

func TestForeignCurrencyConverted(t *testing.T) {
	e := newEnv(t, scenarios(t))
	inv := e.process(t, tableBookPDF)

	assert.Equal(t, models.StatusOK, inv.Status)
	assert.Equal(t, "EUR", inv.Currency)
	require.NotNil(t, inv.Total)
	assert.Equal(t, 18.52, *inv.Total)
	assert.Equal(t, 18.52, inv.CalcTotal)

	require.Len(t, inv.Lines, 1)
	l := inv.Lines[0]
	assert.Equal(t, 18.52, l.Base)
	require.NotNil(t, l.UnitPrice)
	assert.Equal(t, 18.52, *l.UnitPrice)
	assert.Equal(t, 0, l.VAT)
	assert.Equal(t, "GASTOS VARIOS", l.Category)
	assert.Equal(t, "CURRENCY_CONVERTED USD→EUR @1.08", l.Note)
	assert.True(t, hasPrefix(inv.Notes, models.KindCurrencyConverted))

	require.Len(t, e.rates.calls, 1)
	assert.Equal(t, rateCall{"USD", "EUR", "05/03/2024"}, e.rates.calls[0])
}

func TestForeignCurrencyWithoutRate(t *testing.T) {
	e := newEnv(t, scenarios(t))
	e.rates.err = errors.New("oracle down")
	inv := e.process(t, tableBookPDF)

	assert.Equal(t, "USD", inv.Currency)
	assert.Equal(t, 20.00, inv.Lines[0].Base)
	assert.Empty(t, inv.Lines[0].Note)
	assert.True(t, hasPrefix(inv.Warnings, models.KindCurrencyConverted))
	assert.Equal(t, models.StatusOK, inv.Status)
}

func TestUnknownTicketFallsBackToGeneric(t *testing.T) {
	e := newEnv(t, scenarios(t))
	inv := e.process(t, ticketJPG)

	assert.Equal(t, suppliers.GenericName, inv.Strategy)
	assert.Equal(t, suppliers.GenericName, inv.Supplier)
	assert.Equal(t, "B12345674", inv.SupplierID)
	assert.Equal(t, registry.ByFallback, inv.Resolution)
	assert.Equal(t, models.CapOCR, inv.Backend)
	require.NotEmpty(t, inv.Warnings)
	assert.True(t, hasPrefix(inv.Warnings[:1], models.KindStrategyMiss))

	require.Len(t, inv.Lines, 1)
	assert.Equal(t, 29.45, inv.Lines[0].Base)
	assert.Equal(t, 10, inv.Lines[0].VAT)
	assert.Equal(t, models.CategoryPending, inv.Lines[0].Category)
	assert.Equal(t, 32.40, inv.CalcTotal)
	assert.Equal(t, models.StatusOK, inv.Status)
	assert.True(t, hasPrefix(inv.Errors, models.KindSinReferencia))

	// The header extraction is reused; no second call.
	assert.Equal(t, []models.Capability{models.CapHybrid}, e.source.calls)
}

func TestStrategyFromHeader(t *testing.T) {
	e := newEnv(t, map[string]map[models.Capability]string{
		"factura 0412.pdf": {
			models.CapTables: facsimile(t, "madrueno.txt"),
			models.CapText:   facsimile(t, "madrueno.txt"),
		},
		"doc1.pdf": only(models.CapTables, facsimile(t, "bebidas.txt")),
	})

	inv := e.process(t, "factura 0412.pdf")
	assert.Equal(t, registry.ByHeader, inv.Resolution)
	assert.Equal(t, "LICORES MADRUEÑO", inv.Strategy)
	assert.Equal(t, models.CapText, inv.Backend)
	assert.Equal(t, []models.Capability{models.CapHybrid, models.CapText}, e.source.calls)

	e.source.calls = nil
	inv = e.process(t, "doc1.pdf")
	assert.Equal(t, "BEBIDAS DEL CENTRO", inv.Strategy)
	assert.Equal(t, models.CapTables, inv.Backend)
	assert.Equal(t, []models.Capability{models.CapHybrid}, e.source.calls)
}

func TestEmptyTextRetriesWithOCR(t *testing.T) {
	name := "LICORES MADRUEÑO escaneada.pdf"
	e := newEnv(t, map[string]map[models.Capability]string{
		name: only(models.CapOCR, facsimile(t, "madrueno.txt")),
	})

	inv := e.process(t, name)
	assert.Equal(t, []models.Capability{models.CapText, models.CapOCR}, e.source.calls)
	assert.Equal(t, models.CapOCR, inv.Backend)
	assert.Equal(t, models.StatusOK, inv.Status)
}

func TestNoText(t *testing.T) {
	e := newEnv(t, map[string]map[models.Capability]string{"scan.pdf": {}})
	inv := e.process(t, "scan.pdf")

	assert.Equal(t, models.StatusNoText, inv.Status)
	assert.True(t, hasPrefix(inv.Errors, models.KindNoText))
	assert.True(t, hasPrefix(inv.Warnings, models.KindStrategyMiss))
	assert.Empty(t, inv.Lines)
	assert.Zero(t, inv.CalcTotal)
	// Hybrid already went through OCR; no retry.
	assert.Equal(t, []models.Capability{models.CapHybrid}, e.source.calls)
}

func TestProcessDocumentIsIdempotent(t *testing.T) {
	e := newEnv(t, scenarios(t))
	for name := range scenarios(t) {
		first := e.process(t, name)
		second := e.process(t, name)
		assert.Equal(t, first, second, name)
	}
}

func TestEveryStatusIsInVocabulary(t *testing.T) {
	e := newEnv(t, scenarios(t))
	for name := range scenarios(t) {
		inv := e.process(t, name)
		assert.True(t, inv.Status.Valid(), "%s: %s", name, inv.Status)
		assert.NotEmpty(t, inv.Supplier, name)
	}
}

func TestProcessDocumentUnreadable(t *testing.T) {
	e := newEnv(t, nil)

	_, err := e.p.ProcessDocument(context.Background(), e.path("missing.pdf"), 1)
	assert.ErrorIs(t, err, invoice.ErrUnreadableFile)

	notes := e.path("notes.txt")
	require.NoError(t, os.WriteFile(notes, []byte("hola"), 0o644))
	_, err = e.p.ProcessDocument(context.Background(), notes, 1)
	assert.ErrorIs(t, err, invoice.ErrUnreadableFile)
}

func TestRunKeepsInputOrder(t *testing.T) {
	e := newEnv(t, scenarios(t))
	paths := []string{e.path(bebidasPDF), e.path(madruenoPDF), e.path(cerroAltoPDF)}

	invoices, err := e.p.Run(context.Background(), paths, invoice.RunOptions{})
	require.NoError(t, err)
	require.Len(t, invoices, 3)

	want := []string{"BEBIDAS DEL CENTRO", "LICORES MADRUEÑO", "BODEGAS CERRO ALTO"}
	for i, inv := range invoices {
		assert.Equal(t, i+1, inv.Number)
		assert.Equal(t, want[i], inv.Strategy)
	}
}

func TestRunOnlyFilter(t *testing.T) {
	e := newEnv(t, scenarios(t))
	paths := []string{e.path(bebidasPDF), e.path(madruenoPDF), e.path(cerroAltoPDF)}

	invoices, err := e.p.Run(context.Background(), paths, invoice.RunOptions{Only: "cerro alto"})
	require.NoError(t, err)
	require.Len(t, invoices, 1)
	assert.Equal(t, "BODEGAS CERRO ALTO", invoices[0].Strategy)
	assert.Equal(t, 1, invoices[0].Number)

	_, err = e.p.Run(context.Background(), paths, invoice.RunOptions{Only: "proveedor inexistente"})
	assert.ErrorIs(t, err, invoice.ErrUnknownSupplier)
}

func TestRunSkipsUnreadableDocuments(t *testing.T) {
	e := newEnv(t, scenarios(t))
	paths := []string{e.path("missing.pdf"), e.path(madruenoPDF)}

	invoices, err := e.p.Run(context.Background(), paths, invoice.RunOptions{})
	assert.ErrorIs(t, err, invoice.ErrUnreadableFile)
	require.Len(t, invoices, 1)
	assert.Equal(t, 1, invoices[0].Number)
}

func TestRunCanceled(t *testing.T) {
	e := newEnv(t, scenarios(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	invoices, err := e.p.Run(ctx, []string{e.path(madruenoPDF)}, invoice.RunOptions{})
	assert.ErrorIs(t, err, invoice.ErrCanceled)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, invoices)
	assert.Empty(t, e.source.calls)
}

func TestRunCanceledKeepsSkippedDocuments(t *testing.T) {
	e := newEnv(t, scenarios(t))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	paths := []string{e.path("missing.pdf"), e.path(madruenoPDF), e.path(cerroAltoPDF)}

	opts := invoice.RunOptions{Progress: func(*models.Invoice, int) { cancel() }}
	invoices, err := e.p.Run(ctx, paths, opts)
	require.Len(t, invoices, 1)
	assert.ErrorIs(t, err, invoice.ErrCanceled)
	assert.ErrorIs(t, err, invoice.ErrUnreadableFile)

	joined, ok := err.(interface{ Unwrap() []error })
	require.True(t, ok)
	var skipped []string
	for _, je := range joined.Unwrap() {
		var pe *invoice.PipelineError
		if errors.As(je, &pe) && pe.Path != "" {
			skipped = append(skipped, filepath.Base(pe.Path))
		}
	}
	assert.Equal(t, []string{"missing.pdf"}, skipped)
}

func TestRunReportsProgressPerDocument(t *testing.T) {
	e := newEnv(t, scenarios(t))
	paths := []string{e.path(bebidasPDF), e.path(madruenoPDF), e.path(cerroAltoPDF)}

	type step struct {
		number, scanned, calls int
	}
	var steps []step
	opts := invoice.RunOptions{Progress: func(inv *models.Invoice, scanned int) {
		// The callback runs before the next document is read.
		steps = append(steps, step{inv.Number, scanned, len(e.source.calls)})
	}}
	invoices, err := e.p.Run(context.Background(), paths, opts)
	require.NoError(t, err)
	require.Len(t, invoices, 3)
	require.Len(t, steps, 3)
	for i, s := range steps {
		assert.Equal(t, i+1, s.number)
		assert.Equal(t, i+1, s.scanned)
		if i > 0 {
			assert.Greater(t, s.calls, steps[i-1].calls)
		}
	}

	// With a filter, scanned still counts every document looked at.
	steps = nil
	_, err = e.p.Run(context.Background(), paths, invoice.RunOptions{Only: "cerro alto", Progress: opts.Progress})
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Equal(t, 1, steps[0].number)
	assert.Equal(t, 3, steps[0].scanned)
}

func TestRunWithoutInput(t *testing.T) {
	e := newEnv(t, nil)
	_, err := e.p.Run(context.Background(), nil, invoice.RunOptions{})
	assert.ErrorIs(t, err, invoice.ErrNoInput)
}

func TestListInputs(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.pdf", "a.JPG", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "c.pdf"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.pdf", "nested.pdf"), nil, 0o644))

	paths, err := invoice.ListInputs(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.JPG"), filepath.Join(dir, "b.pdf")}, paths)

	_, err = invoice.ListInputs(t.TempDir())
	assert.ErrorIs(t, err, invoice.ErrNoInput)
}
