// Command pricelist-ingest updates catalog base prices from gzipped
// supplier price list dumps. Each dump holds one offer per line in the
// form "sku;normal;member". The dumps are too large to cross-join in
// memory, so the tool runs two streaming passes: pass 1 builds a bloom
// filter of SKUs per file, pass 2 keeps offers whose SKU appears in two
// or more files and remembers the cheapest one. Only confirmed SKUs
// touch the catalog.
package main

import (
	"bufio"
	"context"
	"flag"
	"log/slog"
	"math/bits"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/madraim/shopdesk/internal/storage/postgres"
)

const (
	bloomCapacity = 10_000_000
	bloomFPR      = 0.001
	progressEvery = 1_000_000
)

// offer is one supplier line: a SKU with its foreign-currency prices.
type offer struct {
	normal decimal.Decimal
	member decimal.Decimal
}

// fileResult holds candidate offers found in a single file during pass 2.
type fileResult struct {
	masks  map[string]uint
	offers map[string]offer
}

func main() {
	var (
		dataDir     string
		databaseURL string
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing pricelist*.gz files")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, dataDir, databaseURL); err != nil {
		slog.Error("price list ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("price list ingest completed successfully")
}

func run(ctx context.Context, dataDir, databaseURL string) error {
	files, err := filepath.Glob(filepath.Join(dataDir, "pricelist*.gz"))
	if err != nil {
		return errors.Wrap(err, "glob price lists")
	}
	if len(files) < 2 {
		return errors.Errorf("need at least 2 price list files in %s, found %d", dataDir, len(files))
	}

	// Pass 1: build bloom filters concurrently.
	slog.Info("pass 1: building bloom filters", slog.Int("files", len(files)))

	filters, err := buildBloomFilters(ctx, files)
	if err != nil {
		return errors.Wrap(err, "build bloom filters")
	}

	// Pass 2: collect offers for SKUs appearing in 2+ files.
	slog.Info("pass 2: confirming SKUs across files")

	confirmed, err := confirmOffers(ctx, files, filters)
	if err != nil {
		return errors.Wrap(err, "confirm offers")
	}

	slog.Info("confirmed SKUs", slog.Int("count", len(confirmed)))

	if len(confirmed) == 0 {
		slog.Info("no confirmed SKUs, nothing to update")
		return nil
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := writePrices(ctx, postgres.NewProductRepository(pool), confirmed); err != nil {
		return errors.Wrap(err, "write prices to database")
	}

	return nil
}

// buildBloomFilters creates one bloom filter per file, concurrently.
func buildBloomFilters(ctx context.Context, files []string) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(buildFilterForFile(ctx, i, f, filters))
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return filters, nil
}

func buildFilterForFile(ctx context.Context, idx int, path string, filters []*bloom.BloomFilter) func() error {
	return func() error {
		filter := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
		var count uint64

		if err := streamGzFile(ctx, path, func(line string) {
			sku, _, ok := parseLine(line)
			if !ok {
				return
			}
			filter.AddString(sku)
			count++
			if count%progressEvery == 0 {
				slog.Info("pass 1 progress",
					slog.Int("file", idx+1),
					slog.Uint64("offers", count),
				)
			}
		}); err != nil {
			return errors.Wrapf(err, "build filter for file %d", idx+1)
		}

		slog.Info("pass 1 complete",
			slog.Int("file", idx+1),
			slog.Uint64("total_offers", count),
		)

		filters[idx] = filter
		return nil
	}
}

// confirmOffers re-streams each file and checks SKUs against OTHER files'
// bloom filters. A SKU is confirmed when it appears in 2 or more files;
// the cheapest normal-price offer wins.
func confirmOffers(ctx context.Context, files []string, filters []*bloom.BloomFilter) (map[string]offer, error) {
	results := make([]fileResult, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(collectCandidates(ctx, i, f, filters, results))
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Merge bitmasks and cheapest offers across files.
	masks := make(map[string]uint)
	best := make(map[string]offer)
	for _, r := range results {
		for sku, mask := range r.masks {
			masks[sku] |= mask
		}
		for sku, o := range r.offers {
			if cur, ok := best[sku]; !ok || o.normal.LessThan(cur.normal) {
				best[sku] = o
			}
		}
	}

	confirmed := make(map[string]offer)
	for sku, mask := range masks {
		if bits.OnesCount(mask) >= 2 {
			confirmed[sku] = best[sku]
		}
	}

	return confirmed, nil
}

func collectCandidates(
	ctx context.Context,
	idx int,
	path string,
	filters []*bloom.BloomFilter,
	results []fileResult,
) func() error {
	return func() error {
		masks := make(map[string]uint)
		offers := make(map[string]offer)
		fileBit := uint(1) << uint(idx)
		var count uint64

		if err := streamGzFile(ctx, path, func(line string) {
			sku, o, ok := parseLine(line)
			if !ok {
				return
			}

			count++
			if count%progressEvery == 0 {
				slog.Info("pass 2 progress",
					slog.Int("file", idx+1),
					slog.Uint64("offers", count),
				)
			}

			// Only SKUs present in some OTHER file can be confirmed.
			for j, f := range filters {
				if j == idx {
					continue
				}
				if f.TestString(sku) {
					masks[sku] |= fileBit
					if cur, seen := offers[sku]; !seen || o.normal.LessThan(cur.normal) {
						offers[sku] = o
					}
					break
				}
			}
		}); err != nil {
			return errors.Wrapf(err, "scan file %d for candidates", idx+1)
		}

		slog.Info("pass 2 complete",
			slog.Int("file", idx+1),
			slog.Uint64("total_offers", count),
			slog.Int("candidates", len(masks)),
		)

		results[idx] = fileResult{masks: masks, offers: offers}
		return nil
	}
}

// parseLine splits "sku;normal;member" and validates prices.
func parseLine(line string) (string, offer, bool) {
	parts := strings.SplitN(strings.TrimSpace(line), ";", 3)
	if len(parts) != 3 || parts[0] == "" {
		return "", offer{}, false
	}
	normal, err := decimal.NewFromString(parts[1])
	if err != nil || normal.IsNegative() {
		return "", offer{}, false
	}
	member, err := decimal.NewFromString(parts[2])
	if err != nil || member.IsNegative() {
		return "", offer{}, false
	}
	return parts[0], offer{normal: normal, member: member}, true
}

// streamGzFile opens a gzip-compressed file and calls fn for each line.
func streamGzFile(ctx context.Context, path string, fn func(line string)) error {
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

	scanner := bufio.NewScanner(gz)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		fn(scanner.Text())
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}

	return nil
}

// writePrices updates base prices for every confirmed SKU that exists in
// the catalog. SKUs the catalog does not know are counted and skipped.
func writePrices(ctx context.Context, repo *postgres.ProductRepository, confirmed map[string]offer) error {
	slog.Info("updating base prices", slog.Int("count", len(confirmed)))

	var written, skipped int
	for sku, o := range confirmed {
		updated, err := repo.UpdateBasePrices(ctx, sku, o.normal, o.member)
		if err != nil {
			return errors.Wrapf(err, "update prices for %s", sku)
		}
		if !updated {
			skipped++
			continue
		}
		written++
		if written%100 == 0 {
			slog.Info("write progress", slog.Int("written", written), slog.Int("total", len(confirmed)))
		}
	}

	slog.Info("base prices updated", slog.Int("written", written), slog.Int("unknown_skus", skipped))
	return nil
}
