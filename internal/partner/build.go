package partner

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/funil-digital/leadscore/internal/model"
	"github.com/funil-digital/leadscore/internal/store"
)

// Options configures one directory build.
type Options struct {
	RegistryPath string   // establishment registry CSV (headered, big)
	SeedPath     string   // CNAE seed set CSV
	LookupPath   string   // CNAE subclass description lookup CSV
	OutPath      string   // optional output CSV; empty skips file output
	States       []string // target states; defaults to MG, SP, GO
	Separator    rune     // CSV delimiter; defaults to ';'
	ChunkSize    int      // rows buffered before a store flush; defaults to 5000
}

// Stats summarizes one build run.
type Stats struct {
	RowsRead int   `json:"rows_read"`
	Matched  int   `json:"matched"`
	Written  int64 `json:"written"`
}

// Builder streams the registry and emits matching partners to the store
// and/or an output CSV. The store may be nil for file-only runs.
type Builder struct {
	store store.Store
	opts  Options
}

func NewBuilder(st store.Store, opts Options) *Builder {
	if opts.Separator == 0 {
		opts.Separator = ';'
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 5000
	}
	if len(opts.States) == 0 {
		opts.States = []string{"MG", "SP", "GO"}
	}
	return &Builder{store: st, opts: opts}
}

// registryRow maps the registry columns the build consumes. Extra columns in
// the file are ignored.
type registryRow struct {
	CNPJBase       string `csv:"cnpj_basico"`
	CNPJOrder      string `csv:"cnpj_ordem"`
	CNPJCheck      string `csv:"cnpj_dv"`
	TradeName      string `csv:"nome_fantasia"`
	Registration   string `csv:"situacao_cadastral"`
	ActivityStart  string `csv:"data_inicio_atividade"`
	PrimaryCNAE    string `csv:"cnae_fiscal_principal"`
	SecondaryCNAEs string `csv:"cnae_fiscal_secundaria"`
	State          string `csv:"uf"`
	CityCode       string `csv:"municipio"`
	Email          string `csv:"email"`
	PostalCode     string `csv:"cep"`
}

type seedEntry struct {
	Segment  string
	Priority int
}

// Run executes the build. Partners whose primary or any secondary CNAE is in
// the seed set and whose state is targeted are kept.
func (b *Builder) Run(ctx context.Context) (*Stats, error) {
	seed, err := loadSeed(b.opts.SeedPath, b.opts.Separator)
	if err != nil {
		return nil, err
	}
	lookup, err := loadLookup(b.opts.LookupPath, b.opts.Separator)
	if err != nil {
		return nil, err
	}

	states := make(map[string]bool, len(b.opts.States))
	for _, s := range b.opts.States {
		states[strings.ToUpper(strings.TrimSpace(s))] = true
	}

	f, err := os.Open(b.opts.RegistryPath)
	if err != nil {
		return nil, eris.Wrapf(err, "partner: open registry %s", b.opts.RegistryPath)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.Comma = b.opts.Separator
	dec, err := csvutil.NewDecoder(reader)
	if err != nil {
		return nil, eris.Wrap(err, "partner: read registry header")
	}
	if err := requireColumns(dec.Header(), "uf", "cnae_fiscal_principal"); err != nil {
		return nil, err
	}

	var enc *csvutil.Encoder
	var outWriter *csv.Writer
	if b.opts.OutPath != "" {
		if err := os.MkdirAll(filepath.Dir(b.opts.OutPath), 0o755); err != nil {
			return nil, eris.Wrapf(err, "partner: mkdir %s", filepath.Dir(b.opts.OutPath))
		}
		out, err := os.Create(b.opts.OutPath)
		if err != nil {
			return nil, eris.Wrapf(err, "partner: create %s", b.opts.OutPath)
		}
		defer out.Close()
		outWriter = csv.NewWriter(out)
		outWriter.Comma = b.opts.Separator
		defer outWriter.Flush()
		enc = csvutil.NewEncoder(outWriter)
	}

	stats := &Stats{}
	chunk := make([]model.Partner, 0, b.opts.ChunkSize)

	flush := func() error {
		if len(chunk) == 0 {
			return nil
		}
		if b.store != nil {
			n, err := b.store.UpsertPartners(ctx, chunk)
			if err != nil {
				return err
			}
			stats.Written += n
		}
		if enc != nil {
			for _, p := range chunk {
				if err := enc.Encode(p); err != nil {
					return eris.Wrap(err, "partner: encode output row")
				}
			}
			if b.store == nil {
				stats.Written += int64(len(chunk))
			}
		}
		chunk = chunk[:0]
		return nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "partner: build cancelled")
		}

		var row registryRow
		if err := dec.Decode(&row); err == io.EOF {
			break
		} else if err != nil {
			return nil, eris.Wrapf(err, "partner: registry row %d", stats.RowsRead+1)
		}
		stats.RowsRead++

		state := strings.ToUpper(strings.TrimSpace(row.State))
		if !states[state] {
			continue
		}

		primary := NormalizeCNAE(row.PrimaryCNAE)
		entry, matched := seed[primary]
		if !matched {
			for _, code := range SplitSecondaryCNAEs(row.SecondaryCNAEs) {
				if e, ok := seed[NormalizeCNAE(code)]; ok {
					entry, matched = e, true
					break
				}
			}
		}
		if !matched {
			continue
		}
		stats.Matched++

		chunk = append(chunk, model.Partner{
			CNPJ:            composeCNPJ(row.CNPJBase, row.CNPJOrder, row.CNPJCheck),
			TradeName:       strings.TrimSpace(row.TradeName),
			State:           state,
			CityCode:        row.CityCode,
			PrimaryCNAE:     primary,
			SecondaryCNAEs:  row.SecondaryCNAEs,
			Segment:         entry.Segment,
			Priority:        entry.Priority,
			Registration:    row.Registration,
			ActivityStart:   row.ActivityStart,
			Email:           row.Email,
			PostalCode:      row.PostalCode,
			CNAEDescription: lookup[primary],
		})

		if len(chunk) >= b.opts.ChunkSize {
			if err := flush(); err != nil {
				return nil, err
			}
		}
	}

	if err := flush(); err != nil {
		return nil, err
	}
	if outWriter != nil {
		outWriter.Flush()
		if err := outWriter.Error(); err != nil {
			return nil, eris.Wrapf(err, "partner: write %s", b.opts.OutPath)
		}
	}

	zap.L().Info("partner: build complete",
		zap.Int("rows_read", stats.RowsRead),
		zap.Int("matched", stats.Matched),
		zap.Int64("written", stats.Written),
	)
	return stats, nil
}

// composeCNPJ assembles the 14-digit identifier from its registry parts.
// Missing parts yield an empty identifier rather than a partial one.
func composeCNPJ(base, order, check string) string {
	if base == "" || order == "" || check == "" {
		return ""
	}
	return zfill(base, 8) + zfill(order, 4) + zfill(check, 2)
}

func zfill(s string, width int) string {
	for len(s) < width {
		s = "0" + s
	}
	return s
}

// loadSeed reads the CNAE seed set. The code column is subclasse_num7 when
// present, otherwise the first column; segmento and prioridade columns are
// optional.
func loadSeed(path string, sep rune) (map[string]seedEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "partner: open seed %s", path)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.Comma = sep
	header, err := reader.Read()
	if err != nil {
		return nil, eris.Wrapf(err, "partner: read seed header %s", path)
	}

	codeIdx, segIdx, prioIdx := 0, -1, -1
	for i, col := range header {
		switch strings.TrimSpace(col) {
		case "subclasse_num7":
			codeIdx = i
		case "segmento":
			segIdx = i
		case "prioridade":
			prioIdx = i
		}
	}

	seed := make(map[string]seedEntry)
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrapf(err, "partner: read seed %s", path)
		}
		code := NormalizeCNAE(rec[codeIdx])
		if code == "" {
			continue
		}

		entry := seedEntry{Priority: 2}
		if segIdx >= 0 && segIdx < len(rec) {
			entry.Segment = NormalizeSegment(rec[segIdx])
		}
		if prioIdx >= 0 && prioIdx < len(rec) {
			if p, err := strconv.Atoi(strings.TrimSpace(rec[prioIdx])); err == nil {
				entry.Priority = p
			}
		}
		seed[code] = entry
	}
	if len(seed) == 0 {
		return nil, eris.Errorf("partner: seed %s has no CNAE codes", path)
	}
	return seed, nil
}

type lookupRow struct {
	Code        string `csv:"subclasse_num7"`
	Description string `csv:"subclasse_desc"`
	Name        string `csv:"denominacao"`
}

// loadLookup reads the CNAE description lookup keyed by 7-digit subclass.
func loadLookup(path string, sep rune) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "partner: open lookup %s", path)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.Comma = sep
	dec, err := csvutil.NewDecoder(reader)
	if err != nil {
		return nil, eris.Wrapf(err, "partner: read lookup header %s", path)
	}
	if err := requireColumns(dec.Header(), "subclasse_num7"); err != nil {
		return nil, err
	}

	lookup := make(map[string]string)
	for {
		var row lookupRow
		if err := dec.Decode(&row); err == io.EOF {
			break
		} else if err != nil {
			return nil, eris.Wrapf(err, "partner: read lookup %s", path)
		}
		code := NormalizeCNAE(row.Code)
		if code == "" {
			continue
		}
		desc := row.Description
		if desc == "" {
			desc = row.Name
		}
		lookup[code] = desc
	}
	return lookup, nil
}

func requireColumns(header []string, required ...string) error {
	present := make(map[string]bool, len(header))
	for _, col := range header {
		present[strings.TrimSpace(col)] = true
	}
	var missing []string
	for _, col := range required {
		if !present[col] {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return eris.Errorf("partner: missing required columns: %s", strings.Join(missing, ", "))
	}
	return nil
}
