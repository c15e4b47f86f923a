package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"milaf-storefront/internal/domain"
)

type ProductWriter interface {
	Upsert(ctx context.Context, product domain.Product) (*domain.Product, error)
}

// CSVImporter reads catalog CSV files with the columns
// name,price,case_price,category,description,stock_status and upserts each
// row as a product. Prices are decimal major units.
type CSVImporter struct {
	reader      *csv.Reader
	productRepo ProductWriter
	currency    string
	logger      *zap.Logger
}

func NewCSVImporter(r io.Reader, repo ProductWriter, currency string, logger *zap.Logger) *CSVImporter {
	csvr := csv.NewReader(r)
	csvr.FieldsPerRecord = -1 // trailing optional columns may be absent
	csvr.TrimLeadingSpace = true
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CSVImporter{
		reader:      csvr,
		productRepo: repo,
		currency:    strings.ToUpper(currency),
		logger:      logger.Named("importer"),
	}
}

var requiredColumns = []string{"name", "price"}

// Run imports every row and returns the number of products written. A bad
// row stops the import with its line number.
func (i *CSVImporter) Run(ctx context.Context) (int, error) {
	headers, err := i.reader.Read()
	if err != nil {
		return 0, fmt.Errorf("read headers: %w", err)
	}
	index := headerIndex(headers)
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			return 0, fmt.Errorf("missing column %q", col)
		}
	}

	imported := 0
	line := 1
	for {
		record, err := i.reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return imported, fmt.Errorf("read row %d: %w", line, err)
		}
		if blank(record) {
			continue
		}

		p, err := i.parseRow(record, index)
		if err != nil {
			return imported, fmt.Errorf("row %d: %w", line, err)
		}
		if _, err := i.productRepo.Upsert(ctx, *p); err != nil {
			return imported, fmt.Errorf("upsert product %q: %w", p.Name, err)
		}
		imported++
	}

	i.logger.Info("catalog imported", zap.Int("products", imported))
	return imported, nil
}

func (i *CSVImporter) parseRow(record []string, index map[string]int) (*domain.Product, error) {
	name := pick(record, index, "name")
	if name == "" {
		return nil, domain.Invalid("name", "required")
	}
	price, err := domain.ParseMajor(pick(record, index, "price"))
	if err != nil || price <= 0 {
		return nil, domain.Invalid("price", fmt.Sprintf("invalid price for %q", name))
	}
	var casePrice int64
	if raw := pick(record, index, "case_price"); raw != "" {
		casePrice, err = domain.ParseMajor(raw)
		if err != nil || casePrice < 0 {
			return nil, domain.Invalid("case_price", fmt.Sprintf("invalid case price for %q", name))
		}
	}
	stock, err := parseStockStatus(pick(record, index, "stock_status"))
	if err != nil {
		return nil, err
	}
	return &domain.Product{
		Name:           name,
		PriceCents:     price,
		CasePriceCents: casePrice,
		Category:       pick(record, index, "category"),
		Description:    pick(record, index, "description"),
		StockStatus:    stock,
		Currency:       i.currency,
	}, nil
}

func parseStockStatus(raw string) (domain.StockStatus, error) {
	switch s := domain.StockStatus(strings.ToLower(strings.ReplaceAll(raw, " ", "_"))); s {
	case "":
		return domain.StockInStock, nil
	case domain.StockInStock, domain.StockLow, domain.StockOutOfStock:
		return s, nil
	default:
		return "", domain.Invalid("stock_status", "unknown value "+raw)
	}
}

func headerIndex(headers []string) map[string]int {
	idx := make(map[string]int, len(headers))
	for i, h := range headers {
		idx[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	return idx
}

func blank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func pick(record []string, index map[string]int, key string) string {
	pos, ok := index[key]
	if !ok || pos >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[pos])
}
