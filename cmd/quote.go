package cmd

import (
	"fmt"
	"io"
	"strings"

	"tourdesk/pkg/config"
	"tourdesk/pkg/pricing"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type quoteOptions struct {
	destination  string
	pax          int
	days         int
	noMeal       bool
	upgradeHotel bool
	guide        bool
	noESIM       bool
	output       string
}

var quoteOpts quoteOptions

var quoteCmd = &cobra.Command{
	Use:   "quote",
	Short: "Price a tour from the command line",
	Long:  "Prices a tour with the configured catalog, the same way the assistant quotes customers.",
	RunE: func(cmd *cobra.Command, args []string) error {
		_ = args

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		catalog, err := pricing.Load(cfg.Assistant.PricingFile)
		if err != nil {
			return err
		}
		return writeQuote(cmd.OutOrStdout(), catalog, quoteOpts)
	},
}

func init() {
	rootCmd.AddCommand(quoteCmd)
	quoteCmd.Flags().StringVar(&quoteOpts.destination, "to", "", "destination country, city or region id")
	quoteCmd.Flags().IntVar(&quoteOpts.pax, "pax", 0, "number of travelers")
	quoteCmd.Flags().IntVar(&quoteOpts.days, "days", 0, "trip length in days")
	quoteCmd.Flags().BoolVar(&quoteOpts.noMeal, "no-meal", false, "exclude main meals")
	quoteCmd.Flags().BoolVar(&quoteOpts.upgradeHotel, "upgrade-hotel", false, "upgrade to 4-5 star hotels")
	quoteCmd.Flags().BoolVar(&quoteOpts.guide, "guide", false, "tour guide from departure")
	quoteCmd.Flags().BoolVar(&quoteOpts.noESIM, "no-esim", false, "exclude the eSIM")
	quoteCmd.Flags().StringVarP(&quoteOpts.output, "output", "o", "text", "output format: text or yaml")
}

func writeQuote(w io.Writer, catalog *pricing.Catalog, opts quoteOptions) error {
	if strings.TrimSpace(opts.destination) == "" {
		return fmt.Errorf("--to is required")
	}

	mods := pricing.Modifiers{
		NoMeal:         opts.noMeal,
		UpgradeHotel:   opts.upgradeHotel,
		GuideFromStart: opts.guide,
		NoESIM:         opts.noESIM,
	}
	q, known, err := catalog.QuoteDestination(opts.destination, opts.pax, opts.days, mods)
	if err != nil {
		return err
	}

	switch strings.ToLower(strings.TrimSpace(opts.output)) {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(q); err != nil {
			return fmt.Errorf("encode quote: %w", err)
		}
		return enc.Close()
	case "", "text":
	default:
		return fmt.Errorf("unsupported output format: %s", opts.output)
	}

	if !known {
		fmt.Fprintf(w, "destination %q not recognized, priced as %s\n", opts.destination, q.Label)
	}
	fmt.Fprintf(w, "%s · %d ngày · %d người\n", q.Label, q.Days, q.Pax)
	fmt.Fprintf(w, "  rate/day   %s USD\n", q.RatePerDay.Display())
	fmt.Fprintf(w, "  per person %s USD\n", q.PerPerson.Display())
	fmt.Fprintf(w, "  total      %s USD\n", q.Total.Display())
	if q.DiscountApplied {
		fmt.Fprintf(w, "  long trip discount %.0f%%\n", q.DiscountPct)
	}
	fmt.Fprintf(w, "  includes   %s\n", strings.Join(catalog.IncludedServices(mods), "; "))
	return nil
}
