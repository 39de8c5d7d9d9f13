package category_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/TascaBarea/ParsearFacturas-sub000/internal/category"
	"github.com/TascaBarea/ParsearFacturas-sub000/pkg/models"
)

var entries = []category.Entry{
	{Supplier: "LICORES MADRUEÑO", Article: "Ron Zacapa 23", Category: "DESTILADOS", VAT: 21, HasVAT: true},
	{Supplier: "LICORES MADRUEÑO", Article: "Aguardiente de orujo", Category: "DESTILADOS", VAT: 21, HasVAT: true},
	{Supplier: "LICORES MADRUEÑO", Article: "Agua", Category: "AGUAS", VAT: 10, HasVAT: true},
	{Supplier: "QUESERIA CARDENAL", Article: "Queso curado", Category: "QUESOS"},
	{Supplier: "QUESERIA CARDENAL", Article: "Manchego", Category: ""},
	{Supplier: "", Article: "Portes", Category: "TRANSPORTE", VAT: 21, HasVAT: true},
}

func newResolver() *category.Resolver {
	return category.NewResolver(category.NewDictionary(entries), map[string]string{
		"MADRUENO": "LICORES MADRUEÑO",
	})
}

func TestLookupHitsDictionary(t *testing.T) {
	r := newResolver()

	// Every dictionary pair resolves to its own category.
	for _, e := range entries {
		supplier := e.Supplier
		if supplier == "" {
			supplier = "CUALQUIERA"
		}
		m := r.Lookup(supplier, e.Article, 0)
		want := e.Category
		if want == "" {
			want = models.CategoryPending
		}
		assert.Equal(t, want, m.Category, e.Article)
		assert.True(t, m.Found, e.Article)
	}
}

func TestLookupContainment(t *testing.T) {
	r := newResolver()

	m := r.Lookup("LICORES MADRUEÑO", "RON ZACAPA 23 70CL", 0)
	assert.Equal(t, "DESTILADOS", m.Category)
	assert.Equal(t, 21, m.VAT)
	assert.Equal(t, models.VATFromDict, m.Source)

	m = r.Lookup("Madrueño", "Agua mineral 1,5L", 0)
	assert.Equal(t, "AGUAS", m.Category)
	assert.Equal(t, 10, m.VAT)

	// AGUA must not match inside AGUARDIENTE.
	m = r.Lookup("LICORES MADRUEÑO", "AGUARDIENTE BLANCO", 0)
	assert.False(t, m.Found)
	assert.Equal(t, models.CategoryPending, m.Category)

	m = r.Lookup("LICORES MADRUEÑO", "AGUARDIENTE CON AGUA", 0)
	assert.Equal(t, "AGUAS", m.Category)
}

func TestLookupPluralAndJoinedNames(t *testing.T) {
	d := category.NewDictionary([]category.Entry{
		{Supplier: "BEBIDAS DEL CENTRO", Article: "CERVEZA", Category: "CERVEZAS"},
		{Supplier: "BEBIDAS DEL CENTRO", Article: "COCA COLA", Category: "REFRESCOS"},
		{Supplier: "BEBIDAS DEL CENTRO", Article: "COCA COLA ZERO 33", Category: "REFRESCOS ZERO"},
	})
	r := category.NewResolver(d, nil)

	m := r.Lookup("BEBIDAS DEL CENTRO", "CERVEZAS MAHOU 33CL", 0)
	assert.True(t, m.Found)
	assert.Equal(t, "CERVEZAS", m.Category)

	m = r.Lookup("BEBIDAS DEL CENTRO", "COCACOLA 33CL", 0)
	assert.True(t, m.Found)
	assert.Equal(t, "REFRESCOS", m.Category)

	// The longest contained pattern wins.
	m = r.Lookup("BEBIDAS DEL CENTRO", "COCACOLA ZERO 33CL", 0)
	assert.True(t, m.Found)
	assert.Equal(t, "REFRESCOS ZERO", m.Category)

	// An article shorter than the pattern matches too.
	m = r.Lookup("BEBIDAS DEL CENTRO", "Cerv.", 0)
	assert.True(t, m.Found)
	assert.Equal(t, "CERVEZAS", m.Category)

	assert.Zero(t, r.Pending().Len())
}

func TestLookupVATPrecedence(t *testing.T) {
	r := newResolver()

	m := r.Lookup("LICORES MADRUEÑO", "Ron Zacapa 23", 10)
	assert.Equal(t, 10, m.VAT)
	assert.Equal(t, models.VATUnset, m.Source)

	m = r.Lookup("QUESERIA CARDENAL", "Queso curado", 0)
	assert.Equal(t, "QUESOS", m.Category)
	assert.Equal(t, 4, m.VAT)
	assert.Equal(t, models.VATFromGuess, m.Source)

	m = r.Lookup("DESCONOCIDO", "Servicio técnico", 0)
	assert.Equal(t, models.CategoryPending, m.Category)
	assert.Equal(t, category.DefaultVAT, m.VAT)
	assert.Equal(t, models.VATFromDefault, m.Source)

	m = r.Lookup("DESCONOCIDO", "Servicio técnico", 4)
	assert.Equal(t, 4, m.VAT)
}

func TestPendingListMonotonic(t *testing.T) {
	r := newResolver()

	lookups := []struct{ supplier, article string }{
		{"A", "Producto uno"},
		{"A", "PRODUCTO  UNO"},
		{"B", "Producto uno"},
		{"QUESERIA CARDENAL", "Manchego"},
		{"A", "producto-uno"},
		{"C", "Otro"},
	}

	prev := 0
	for _, l := range lookups {
		r.Lookup(l.supplier, l.article, 0)
		n := r.Pending().Len()
		assert.GreaterOrEqual(t, n, prev)
		prev = n
	}

	items := r.Pending().Items()
	assert.Equal(t, []category.PendingItem{
		{Supplier: "A", Article: "Producto uno"},
		{Supplier: "B", Article: "Producto uno"},
		{Supplier: "QUESERIA CARDENAL", Article: "Manchego"},
		{Supplier: "C", Article: "Otro"},
	}, items)
}

func TestGuessVAT(t *testing.T) {
	tests := []struct {
		article string
		vat     int
		ok      bool
	}{
		{"Vinos tintos crianza", 21, true},
		{"Aguardiente", 21, true},
		{"Agua con gas", 10, true},
		{"Pan de pueblo", 4, true},
		{"Huevos camperos", 4, true},
		{"Jamón ibérico", 10, true},
		{"Detergente lavavajillas", 21, true},
		{"Cuota mensual", 0, false},
	}
	for _, tt := range tests {
		vat, ok := category.GuessVAT(tt.article)
		assert.Equal(t, tt.ok, ok, tt.article)
		assert.Equal(t, tt.vat, vat, tt.article)
	}
}

func TestGuessVATShortKeywords(t *testing.T) {
	tests := []struct {
		article string
		vat     int
		ok      bool
	}{
		{"Te verde", 10, true},
		{"Ron añejo", 21, true},
		{"Pan rústico", 4, true},
		{"Teja árabe", 0, false},
		{"Ronda de mantenimiento", 0, false},
		{"Pana gris", 0, false},
		{"Salsa brava", 10, true},
	}
	for _, tt := range tests {
		vat, ok := category.GuessVAT(tt.article)
		assert.Equal(t, tt.ok, ok, tt.article)
		assert.Equal(t, tt.vat, vat, tt.article)
	}
}

func TestLoadDictionaryCSV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dict.csv")
	content := "\xef\xbb\xbfProveedor;Artículo;Categoría;Tipo_IVA\n" +
		"LICORES MADRUEÑO;Ron Zacapa 23;DESTILADOS;21\n" +
		"QUESERIA CARDENAL;Queso curado;QUESOS;4%\n" +
		"PANADERIA;Barra;;\n" +
		"FRUTAS GARCIA;Zumo naranja;ZUMOS;0.1\n" +
		"FRUTAS GARCIA;Zumo manzana;ZUMOS;0,1\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	d, err := category.LoadDictionary(path)
	require.NoError(t, err)
	assert.Equal(t, 5, d.Len())
	assert.Equal(t, 4, d.Suppliers())

	r := category.NewResolver(d, nil)
	m := r.Lookup("QUESERIA CARDENAL", "Queso curado", 0)
	assert.Equal(t, "QUESOS", m.Category)
	assert.Equal(t, 4, m.VAT)

	m = r.Lookup("PANADERIA", "Barra", 0)
	assert.Equal(t, models.CategoryPending, m.Category)
	assert.True(t, m.Found)

	// Fractional rates with a single separator.
	for _, article := range []string{"Zumo naranja", "Zumo manzana"} {
		m = r.Lookup("FRUTAS GARCIA", article, 0)
		assert.Equal(t, "ZUMOS", m.Category, article)
		assert.Equal(t, 10, m.VAT, article)
		assert.Equal(t, models.VATFromDict, m.Source, article)
	}
}

func TestLoadDictionaryXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dict.xlsx")

	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"PROVEEDOR", "ARTICULO", "CATEGORIA", "TIPO_IVA", "ID_CATEGORIA"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]any{"BODEGAS VIRGEN", "Garnacha 2021", "VINOS", "0,21", "V01"}))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	d, err := category.LoadDictionary(path)
	require.NoError(t, err)

	m := category.NewResolver(d, nil).Lookup("Bodegas Virgen", "GARNACHA 2021", 0)
	assert.Equal(t, "VINOS", m.Category)
	assert.Equal(t, "V01", m.CategoryID)
	assert.Equal(t, 21, m.VAT)
}

func TestLoadDictionaryCorrupt(t *testing.T) {
	dir := t.TempDir()

	missing := filepath.Join(dir, "missing.csv")
	require.NoError(t, os.WriteFile(missing, []byte("PROVEEDOR,ARTICULO\nA,B\n"), 0o644))
	_, err := category.LoadDictionary(missing)
	assert.ErrorIs(t, err, category.ErrCorruptDictionary)

	_, err = category.LoadDictionary(filepath.Join(dir, "nope.csv"))
	assert.ErrorIs(t, err, category.ErrCorruptDictionary)

	_, err = category.LoadDictionary(filepath.Join(dir, "dict.json"))
	assert.ErrorIs(t, err, category.ErrCorruptDictionary)
}

func TestLookupRowsKeyedByAlias(t *testing.T) {
	d := category.NewDictionary([]category.Entry{
		{Supplier: "HNOS ROJO", Article: "Chuleton", Category: "CARNES"},
	})
	r := category.NewResolver(d, map[string]string{"HNOS ROJO": "CARNICERIA HERMANOS ROJO"})

	m := r.Lookup("CARNICERIA HERMANOS ROJO", "CHULETON DE VACA", 0)
	assert.True(t, m.Found)
	assert.Equal(t, "CARNES", m.Category)
}
