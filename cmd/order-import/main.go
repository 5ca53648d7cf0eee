// Command order-import backfills historical orders from gzip-compressed CSV
// files so that the purchase rules see orders placed elsewhere.
//
// Each line is customer_id,value,order_date_rfc3339,payment_ref. Lines
// repeating a payment_ref, within a file or across files, are imported once.
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/provapub/internal/domain/order"
	"github.com/xenking/provapub/internal/domain/payment"
	"github.com/xenking/provapub/internal/repository"
)

const (
	bloomFPR      = 0.001
	progressEvery = 1_000_000
	filePattern   = "orders*.csv.gz"

	// legacyMethod marks orders paid before this service existed.
	legacyMethod = "legacy"
)

type options struct {
	dataDir     string
	databaseURL string
	expected    uint
	batchSize   int
	workers     int
}

// importer is implemented by *repository.OrderRepository.
type importer interface {
	Import(ctx context.Context, orders []order.Order) (int64, error)
}

type stats struct {
	lines      int64
	duplicates int64
	inserted   atomic.Int64
}

func main() {
	var opts options

	flag.StringVar(&opts.dataDir, "data-dir", "data", "directory containing "+filePattern+" files")
	flag.StringVar(&opts.databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.UintVar(&opts.expected, "expected-lines", 10_000_000, "expected lines per file, sizes the bloom filters")
	flag.IntVar(&opts.batchSize, "batch-size", 5000, "orders per COPY batch")
	flag.IntVar(&opts.workers, "workers", 4, "concurrent COPY batches")
	flag.Parse()

	if opts.databaseURL == "" {
		opts.databaseURL = os.Getenv("DATABASE_URL")
	}
	if opts.databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, opts); err != nil {
		slog.Error("order import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("order import completed successfully")
}

func run(ctx context.Context, opts options) error {
	files, err := filepath.Glob(filepath.Join(opts.dataDir, filePattern))
	if err != nil {
		return errors.Wrap(err, "list files")
	}
	if len(files) == 0 {
		return errors.Errorf("no %s files in %s", filePattern, opts.dataDir)
	}
	sort.Strings(files)

	// Pass 1: one bloom filter per file, concurrently.
	slog.Info("pass 1: building bloom filters", slog.Int("files", len(files)))

	filters, local, err := buildFilters(ctx, files, opts.expected)
	if err != nil {
		return errors.Wrap(err, "build bloom filters")
	}

	// Pass 2: payment refs that may repeat across files.
	slog.Info("pass 2: finding duplicate candidates")

	candidates, err := findCandidates(ctx, files, filters, local)
	if err != nil {
		return errors.Wrap(err, "find candidates")
	}

	slog.Info("duplicate candidates found", slog.Int("count", len(candidates)))

	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, opts.databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Pass 3: parse, drop exact duplicates and COPY in batches.
	slog.Info("pass 3: importing orders")

	st, err := load(ctx, files, candidates, repository.NewOrderRepository(pool), opts.batchSize, opts.workers)
	if err != nil {
		return errors.Wrap(err, "import orders")
	}

	slog.Info("import summary",
		slog.Int64("lines", st.lines),
		slog.Int64("duplicates", st.duplicates),
		slog.Int64("inserted", st.inserted.Load()),
	)
	return nil
}

// buildFilters adds every payment ref of each file to that file's filter.
// local holds, per file, the refs the filter had already seen, which
// includes every ref repeated within the file.
func buildFilters(ctx context.Context, files []string, expected uint) ([]*bloom.BloomFilter, []map[string]struct{}, error) {
	filters := make([]*bloom.BloomFilter, len(files))
	local := make([]map[string]struct{}, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			filter := bloom.NewWithEstimates(expected, bloomFPR)
			seen := make(map[string]struct{})
			var count int64

			if err := streamCSV(ctx, path, func(_ int, fields []string) error {
				ref := fields[3]
				if filter.TestAndAddString(ref) {
					seen[ref] = struct{}{}
				}
				count++
				if count%progressEvery == 0 {
					slog.Info("pass 1 progress", slog.String("file", path), slog.Int64("lines", count))
				}
				return nil
			}); err != nil {
				return errors.Wrapf(err, "build filter for %s", path)
			}

			slog.Info("pass 1 complete", slog.String("file", path), slog.Int64("lines", count))
			filters[i], local[i] = filter, seen
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return filters, local, nil
}

// findCandidates returns the payment refs that may occur more than once:
// refs repeated within a file plus refs another file's filter contains.
func findCandidates(ctx context.Context, files []string, filters []*bloom.BloomFilter, local []map[string]struct{}) (map[string]struct{}, error) {
	found := make([]map[string]struct{}, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			cross := make(map[string]struct{})
			if err := streamCSV(ctx, path, func(_ int, fields []string) error {
				ref := fields[3]
				for j, f := range filters {
					if j != i && f.TestString(ref) {
						cross[ref] = struct{}{}
						break
					}
				}
				return nil
			}); err != nil {
				return errors.Wrapf(err, "scan %s for candidates", path)
			}
			found[i] = cross
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make(map[string]struct{})
	for _, set := range append(found, local...) {
		for ref := range set {
			merged[ref] = struct{}{}
		}
	}
	return merged, nil
}

// load streams the files in order and imports every line whose payment ref
// was not imported before. Only candidate refs are tracked exactly.
func load(ctx context.Context, files []string, candidates map[string]struct{}, dst importer, batchSize, workers int) (*stats, error) {
	st := &stats{}
	seen := make(map[string]struct{})

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))

	flush := func(batch []order.Order) {
		g.Go(func() error {
			n, err := dst.Import(gctx, batch)
			if err != nil {
				return errors.Wrapf(err, "import batch of %d", len(batch))
			}
			st.inserted.Add(n)
			return nil
		})
	}

	batch := make([]order.Order, 0, batchSize)
	for _, path := range files {
		err := streamCSV(gctx, path, func(line int, fields []string) error {
			st.lines++

			o, err := parseRecord(fields)
			if err != nil {
				return errors.Wrapf(err, "%s:%d", path, line)
			}
			if _, ok := candidates[o.PaymentRef]; ok {
				if _, dup := seen[o.PaymentRef]; dup {
					st.duplicates++
					return nil
				}
				seen[o.PaymentRef] = struct{}{}
			}

			batch = append(batch, o)
			if len(batch) >= batchSize {
				flush(batch)
				batch = make([]order.Order, 0, batchSize)
			}
			if st.lines%progressEvery == 0 {
				slog.Info("pass 3 progress", slog.Int64("lines", st.lines), slog.Int64("inserted", st.inserted.Load()))
			}
			return nil
		})
		if err != nil {
			// A failed batch cancels gctx; report that failure instead.
			if werr := g.Wait(); werr != nil {
				return nil, werr
			}
			return nil, err
		}
	}
	if len(batch) > 0 {
		flush(batch)
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return st, nil
}

// parseRecord converts customer_id,value,order_date,payment_ref to an order.
func parseRecord(fields []string) (order.Order, error) {
	customerID, err := strconv.ParseInt(strings.TrimSpace(fields[0]), 10, 64)
	if err != nil || customerID <= 0 {
		return order.Order{}, errors.Errorf("invalid customer id %q", fields[0])
	}
	value, err := decimal.NewFromString(strings.TrimSpace(fields[1]))
	if err != nil || !payment.ValidAmount(value) {
		return order.Order{}, errors.Errorf("invalid value %q", fields[1])
	}
	date, err := time.Parse(time.RFC3339, strings.TrimSpace(fields[2]))
	if err != nil {
		return order.Order{}, errors.Wrapf(err, "invalid order date %q", fields[2])
	}
	ref := strings.TrimSpace(fields[3])
	if ref == "" {
		return order.Order{}, errors.New("empty payment ref")
	}

	return order.Order{
		OrderDate:     date.UTC(),
		Value:         value,
		CustomerID:    customerID,
		PaymentMethod: legacyMethod,
		PaymentRef:    ref,
	}, nil
}

// streamCSV opens a gzip-compressed CSV file and calls fn for each record
// with its 1-based line number. A leading header line is skipped.
func streamCSV(ctx context.Context, path string, fn func(line int, fields []string) error) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	r := csv.NewReader(gz)
	r.FieldsPerRecord = 4
	r.ReuseRecord = true

	for line := 1; ; line++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		fields, err := r.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return errors.Wrapf(err, "read %s", path)
		}
		if line == 1 && fields[0] == "customer_id" {
			continue
		}
		if err := fn(line, fields); err != nil {
			return err
		}
	}
}
