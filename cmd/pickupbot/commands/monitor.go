package commands

import (
	"errors"
	"log/slog"
	"time"

	"pickupbot/lib/serviceutil"
	"pickupbot/lib/stockstore"
	"pickupbot/lib/telemetry"
	"pickupbot/services/checkout"
	"pickupbot/services/notify"
	"pickupbot/services/pickup"

	"github.com/spf13/cobra"
)

var monitorFlags struct {
	products     *[]string
	country      *string
	code         *string
	location     *string
	postalCode   *string
	state        *string
	storeFilters *[]string
	interval     *time.Duration
	noticeCount  *int
	historyDb    *string

	order   *bool
	acType  *string
	acModel *string
}

func init() {
	f := monitorCmd.Flags()
	monitorFlags.products = f.StringSlice("products", nil, "Model identifiers to watch, e.g. MYTP3CH/A.")
	monitorFlags.country = f.String("country", "", "Storefront country code, e.g. cn.")
	monitorFlags.code = f.String("code", "16-pro", "Product line code of the buy page, e.g. 16-pro.")
	monitorFlags.location = f.String("location", "", "Free-form location used by the store locator.")
	monitorFlags.postalCode = f.String("postal-code", "", "Postal code used by the store locator.")
	monitorFlags.state = f.String("state", "", "State or province used by the store locator.")
	monitorFlags.storeFilters = f.StringSlice("store-filter", nil, "Only consider stores whose name contains one of these substrings.")
	monitorFlags.interval = f.Duration("interval", time.Second*5, "Delay between availability checks.")
	monitorFlags.noticeCount = f.Int("notice-count", 1, "How many times to repeat the order placed notification.")
	monitorFlags.historyDb = f.String("history-db", "", "Record every observed offer into this sqlite database.")
	monitorFlags.order = f.Bool("order", false, "Place an order when a watched model becomes available.")
	monitorFlags.acType = f.String("ac-type", "", "AppleCare add-on type, e.g. applecare.")
	monitorFlags.acModel = f.String("ac-model", "", "AppleCare add-on model identifier.")

	monitorCmd.MarkFlagRequired("products")
	monitorCmd.MarkFlagRequired("country")
	rootCmd.AddCommand(monitorCmd)
}

var monitorCmd = &cobra.Command{
	Use:   "monitor --products <model,...> --country <code> [--order]",
	Short: "Polls pickup availability for the given models and alerts (or orders) on stock.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := serviceutil.SignalContext()
		telemetry.InstrumentPerfStats(ctx)

		notifyCfg, err := loadEnv[NotifyConfig]()
		if err != nil {
			serviceutil.Fatal("failed to read notification config", err)
		}
		dispatcher := notify.NewDispatcher(notifyCfg.Notifiers()...)
		slog.Info("notification channels ready", "count", dispatcher.Channels())

		var monitorOpts []pickup.MonitorOption
		if *monitorFlags.historyDb != "" {
			store, err := stockstore.Open(*monitorFlags.historyDb)
			if err != nil {
				serviceutil.Fatal("failed to open history database", err)
			}
			defer store.Close()
			monitorOpts = append(monitorOpts, pickup.WithHistory(store))
		}

		opts := pickup.RunOptions{
			Query: pickup.Query{
				Country:      *monitorFlags.country,
				Models:       *monitorFlags.products,
				Location:     *monitorFlags.location,
				PostalCode:   *monitorFlags.postalCode,
				State:        *monitorFlags.state,
				StoreFilters: *monitorFlags.storeFilters,
			},
			Interval:    *monitorFlags.interval,
			NoticeCount: *monitorFlags.noticeCount,
			Order:       *monitorFlags.order,
		}

		if opts.Order {
			deliveryCfg, err := loadEnv[DeliveryConfig]()
			if err != nil {
				serviceutil.Fatal("failed to read delivery config", err)
			}
			profile, err := deliveryCfg.Profile()
			if err != nil {
				serviceutil.Fatal("incomplete delivery config", err)
			}
			if len(*monitorFlags.products) != 1 {
				serviceutil.Fatal("invalid flags", errors.New("--order watches exactly one model"))
			}

			opts.Intent = checkout.OrderIntent{
				Model:          (*monitorFlags.products)[0],
				ModelCode:      *monitorFlags.code,
				Country:        *monitorFlags.country,
				AccessoryType:  *monitorFlags.acType,
				AccessoryModel: *monitorFlags.acModel,
				Delivery:       profile,
			}

			pool := checkout.NewPool(checkout.PoolOptions{})
			pool.Start(ctx, opts.Intent)
			defer pool.Stop()
			opts.Sessions = pickup.PoolSource{Pool: pool}
		}

		monitor, err := pickup.NewMonitor(dispatcher, monitorOpts...)
		if err != nil {
			serviceutil.Fatal("failed to initialize monitor", err)
		}
		if err := monitor.Run(ctx, opts); err != nil {
			serviceutil.Fatal("monitoring stopped", err)
		}
		if monitor.Placed() {
			slog.Info("order placed, exiting")
		}
	},
}
