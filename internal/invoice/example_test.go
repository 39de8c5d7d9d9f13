package invoice_test

import (
	"context"
	"fmt"
	"log"

	"github.com/TascaBarea/ParsearFacturas-sub000/internal/category"
	"github.com/TascaBarea/ParsearFacturas-sub000/internal/currency"
	"github.com/TascaBarea/ParsearFacturas-sub000/internal/invoice"
	"github.com/TascaBarea/ParsearFacturas-sub000/internal/suppliers"
	"github.com/TascaBarea/ParsearFacturas-sub000/internal/textract"
)

// Example processes a folder of invoices with the local backends.
func Example() {
	ctx := context.Background()

	source, closer, err := textract.New(ctx, textract.Config{Engine: "tesseract"})
	if err != nil {
		log.Fatal(err)
	}
	defer closer()

	reg, err := suppliers.NewRegistry([]string{"B12345674"})
	if err != nil {
		log.Fatal(err)
	}

	dict, err := category.LoadDictionary("DiccionarioProveedoresCategoria.xlsx")
	if err != nil {
		log.Fatal(err)
	}

	rates := currency.NewConverter(nil, currency.Config{
		Fallbacks: map[string]float64{"USD/EUR": 1.08},
	})

	p := invoice.NewPipeline(source, reg, category.NewResolver(dict, suppliers.Aliases()), rates)

	paths, err := invoice.ListInputs("./2024-04")
	if err != nil {
		log.Fatal(err)
	}

	invoices, err := p.Run(ctx, paths, invoice.RunOptions{})
	if err != nil {
		log.Printf("some documents were skipped: %v", err)
	}

	for _, inv := range invoices {
		fmt.Printf("%d %s %s %.2f %s\n", inv.Number, inv.Date, inv.Supplier, inv.CalcTotal, inv.Status)
	}
}

// ExamplePipeline_ProcessDocument runs a single document without a category
// dictionary. Every article ends up PENDIENTE and is listed by the resolver.
func ExamplePipeline_ProcessDocument() {
	ctx := context.Background()

	source, closer, err := textract.New(ctx, textract.Config{})
	if err != nil {
		log.Fatal(err)
	}
	defer closer()

	reg, err := suppliers.NewRegistry(nil)
	if err != nil {
		log.Fatal(err)
	}

	p := invoice.NewPipeline(source, reg, nil, nil)
	inv, err := p.ProcessDocument(ctx, "madrueno_0412.pdf", 1)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(inv.Supplier, inv.Status)
	for _, item := range p.Resolver().Pending().Items() {
		fmt.Printf("pending: %s | %s\n", item.Supplier, item.Article)
	}
}
