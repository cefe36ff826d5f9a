package normalize

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/resilead/sinir-cli/internal/db"
)

// SeedLoader fills the reference vocabularies from the JSON files shipped
// with the deployment. Missing files are skipped; existing rows are kept.
type SeedLoader struct {
	pool    db.Pool
	dataDir string
	logger  *zap.Logger
}

// NewSeedLoader builds a loader rooted at dataDir.
func NewSeedLoader(pool db.Pool, dataDir string) *SeedLoader {
	return &SeedLoader{
		pool:    pool,
		dataDir: dataDir,
		logger:  zap.L().With(zap.String("component", "refload")),
	}
}

type unidadeSeed struct {
	Codigo    int    `json:"uniCodigo"`
	Descricao string `json:"uniDescricao"`
	Sigla     string `json:"uniSigla"`
}

type classeSeed struct {
	Codigo    int    `json:"claCodigo"`
	Descricao string `json:"claDescricao"`
	Resolucao string `json:"claResolucao"`
}

type residuoSeed struct {
	Codigo       string `json:"codigo_residuo"`
	Descricao    string `json:"descricao"`
	Perigoso     int    `json:"perigoso"`
	UnidadeSigla string `json:"unidade_medida_sigla"`
}

// Run loads every seed file present in the data directory.
func (l *SeedLoader) Run(ctx context.Context) error {
	for _, v := range []struct {
		file, table string
	}{
		{"situacao.json", "situacao"},
		{"tipoManifesto.json", "tipo_manifesto"},
		{"tratamento.json", "tratamento"},
	} {
		if err := l.loadVocabulary(ctx, v.file, v.table); err != nil {
			return err
		}
	}
	if err := l.loadUnidades(ctx); err != nil {
		return err
	}
	if err := l.loadClasses(ctx); err != nil {
		return err
	}
	if err := l.loadResiduos(ctx); err != nil {
		return err
	}
	l.logger.Info("reference data loaded")
	return nil
}

// readSeed decodes one seed file into dst. Returns false when the file does
// not exist.
func (l *SeedLoader) readSeed(name string, dst any) (bool, error) {
	data, err := os.ReadFile(filepath.Join(l.dataDir, name))
	if os.IsNotExist(err) {
		l.logger.Debug("seed file absent", zap.String("file", name))
		return false, nil
	}
	if err != nil {
		return false, eris.Wrapf(err, "refload: read %s", name)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, eris.Wrapf(err, "refload: decode %s", name)
	}
	return true, nil
}

func (l *SeedLoader) loadVocabulary(ctx context.Context, file, table string) error {
	var entries []string
	ok, err := l.readSeed(file, &entries)
	if !ok || err != nil {
		return err
	}
	for _, raw := range entries {
		d := Clean(raw)
		if d == "" {
			continue
		}
		if _, err := l.pool.Exec(ctx,
			`INSERT INTO resilead.`+table+` (descricao) VALUES ($1) ON CONFLICT (descricao) DO NOTHING`,
			d); err != nil {
			return eris.Wrapf(err, "refload: insert %s", table)
		}
	}
	return nil
}

func (l *SeedLoader) loadUnidades(ctx context.Context) error {
	var entries []unidadeSeed
	ok, err := l.readSeed("unidade.json", &entries)
	if !ok || err != nil {
		return err
	}
	for _, u := range entries {
		if _, err := l.pool.Exec(ctx, `
			INSERT INTO resilead.unidade (codigo_unidade, descricao, sigla)
			VALUES ($1, $2, $3)
			ON CONFLICT (codigo_unidade) DO NOTHING`,
			u.Codigo, Clean(u.Descricao), Clean(u.Sigla)); err != nil {
			return eris.Wrap(err, "refload: insert unidade")
		}
	}
	return nil
}

func (l *SeedLoader) loadClasses(ctx context.Context) error {
	var entries []classeSeed
	ok, err := l.readSeed("classe.json", &entries)
	if !ok || err != nil {
		return err
	}
	for _, c := range entries {
		if _, err := l.pool.Exec(ctx, `
			INSERT INTO resilead.classe (codigo_classe, descricao, resolucao)
			VALUES ($1, $2, $3)
			ON CONFLICT (codigo_classe) DO NOTHING`,
			c.Codigo, Clean(c.Descricao), Clean(c.Resolucao)); err != nil {
			return eris.Wrap(err, "refload: insert classe")
		}
	}
	return nil
}

// loadResiduos resolves each waste type's default unit against the unidade
// table, by abbreviation first and description second.
func (l *SeedLoader) loadResiduos(ctx context.Context) error {
	var entries []residuoSeed
	ok, err := l.readSeed("residuos.json", &entries)
	if !ok || err != nil {
		return err
	}

	siglaToCodigo := make(map[string]int)
	descToCodigo := make(map[string]int)
	rows, err := l.pool.Query(ctx,
		`SELECT codigo_unidade, sigla, descricao FROM resilead.unidade`)
	if err != nil {
		return eris.Wrap(err, "refload: read unidades")
	}
	defer rows.Close()
	for rows.Next() {
		var cod int
		var sigla, desc string
		if err := rows.Scan(&cod, &sigla, &desc); err != nil {
			return eris.Wrap(err, "refload: scan unidade")
		}
		if k := strings.ToLower(Clean(sigla)); k != "" {
			if _, seen := siglaToCodigo[k]; !seen {
				siglaToCodigo[k] = cod
			}
		}
		if k := strings.ToLower(Clean(desc)); k != "" {
			if _, seen := descToCodigo[k]; !seen {
				descToCodigo[k] = cod
			}
		}
	}
	if err := rows.Err(); err != nil {
		return eris.Wrap(err, "refload: iterate unidades")
	}

	for _, r := range entries {
		code := Clean(r.Codigo)
		if code == "" {
			continue
		}
		var unitCode *int
		if k := strings.ToLower(Clean(r.UnidadeSigla)); k != "" {
			if cod, found := siglaToCodigo[k]; found {
				unitCode = &cod
			} else if cod, found := descToCodigo[k]; found {
				unitCode = &cod
			}
		}
		if _, err := l.pool.Exec(ctx, `
			INSERT INTO resilead.residuo (codigo_residuo, descricao, perigoso, codigo_unidade_padrao)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (codigo_residuo) DO NOTHING`,
			code, Clean(r.Descricao), r.Perigoso != 0, unitCode); err != nil {
			return eris.Wrap(err, "refload: insert residuo")
		}
	}
	return nil
}
