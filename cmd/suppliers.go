package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/TascaBarea/ParsearFacturas-sub000/internal/extractor"
	"github.com/TascaBarea/ParsearFacturas-sub000/internal/suppliers"
)

var suppliersCmd = &cobra.Command{
	Use:   "suppliers",
	Short: "List the supplier strategies",
	Long: `List every registered supplier strategy with its fiscal ID, text backend,
fixed VAT or category, withholding, currency and the aliases it can be
selected by (filename tokens, --only).`,
	Example: `  # Table on stdout
  facturas suppliers

  # Descriptors as JSON
  facturas suppliers --json`,
	Args: cobra.NoArgs,
	RunE: runSuppliers,
}

// SupplierOutput is the JSON shape of one descriptor.
type SupplierOutput struct {
	Name           string   `json:"name"`
	FiscalID       string   `json:"fiscal_id,omitempty"`
	IBAN           string   `json:"iban,omitempty"`
	Backend        string   `json:"backend"`
	FixedCategory  string   `json:"fixed_category,omitempty"`
	FixedVAT       *int     `json:"fixed_vat,omitempty"`
	WithholdingPct float64  `json:"withholding_pct,omitempty"`
	Currency       string   `json:"currency"`
	ProrateFreight bool     `json:"prorate_freight,omitempty"`
	CorrectVAT     bool     `json:"correct_vat,omitempty"`
	Aliases        []string `json:"aliases,omitempty"`
}

func init() {
	rootCmd.AddCommand(suppliersCmd)

	suppliersCmd.Flags().Bool("json", false, "Output as JSON")
}

func runSuppliers(cmd *cobra.Command, args []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	reg, err := suppliers.NewRegistry(nil)
	if err != nil {
		return fmt.Errorf("failed to build supplier registry: %w", err)
	}

	strategies := append(reg.Strategies(), reg.Fallback())
	out := make([]SupplierOutput, 0, len(strategies))
	for _, s := range strategies {
		out = append(out, describe(s.Descriptor()))
	}

	if jsonOutput {
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to create JSON output: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PROVEEDOR\tCIF\tBACKEND\tIVA\tCATEGORIA\tIRPF\tMONEDA\tALIAS")
	for _, s := range out {
		vat := "-"
		if s.FixedVAT != nil {
			vat = fmt.Sprintf("%d%%", *s.FixedVAT)
		}
		irpf := "-"
		if s.WithholdingPct > 0 {
			irpf = fmt.Sprintf("%g%%", s.WithholdingPct)
		}
		category := s.FixedCategory
		if category == "" {
			category = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			s.Name, s.FiscalID, s.Backend, vat, category, irpf, s.Currency, strings.Join(s.Aliases, ", "))
	}
	return w.Flush()
}

func describe(d extractor.Descriptor) SupplierOutput {
	return SupplierOutput{
		Name:           d.Name,
		FiscalID:       d.FiscalID,
		IBAN:           d.IBAN,
		Backend:        string(d.Capability),
		FixedCategory:  d.FixedCategory,
		FixedVAT:       d.FixedVAT,
		WithholdingPct: d.WithholdingPct,
		Currency:       d.InCurrency(),
		ProrateFreight: d.ProrateFreight,
		CorrectVAT:     d.CorrectVAT,
		Aliases:        d.Aliases,
	}
}
