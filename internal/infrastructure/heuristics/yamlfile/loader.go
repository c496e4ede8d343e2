// Package yamlfile overlays classification tables, filial maps and ERP codes read from a YAML file
// onto the built-in defaults.
package yamlfile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/fiscal-doc-analyzer/internal/core/domain"
	"github.com/kirillkom/fiscal-doc-analyzer/internal/core/normalize"
)

type productFile struct {
	MaterialNCM         []string `yaml:"material_ncm"`
	MedicamentoNCM      []string `yaml:"medicamento_ncm"`
	AmbiguousNCM        []string `yaml:"ambiguous_ncm"`
	MaterialKeywords    []string `yaml:"material_keywords"`
	MedicamentoKeywords []string `yaml:"medicamento_keywords"`
}

type serviceFile struct {
	Class        string   `yaml:"class"`
	CNAEPrefixes []string `yaml:"cnae_prefixes"`
	Keywords     []string `yaml:"keywords"`
}

type filialFile struct {
	ByDest    map[string]string `yaml:"by_dest"`
	ByTomador map[string]string `yaml:"by_tomador"`
}

type codesFile struct {
	NFeMovementType        string `yaml:"nfe_movement_type"`
	ProductCodeMedicamento string `yaml:"product_code_medicamento"`
	ProductCodeMaterial    string `yaml:"product_code_material"`
	ProductCodeGenerico    string `yaml:"product_code_generico"`
	NFSeMovementType       string `yaml:"nfse_movement_type"`
	ServiceCodeSaude       string `yaml:"service_code_saude"`
	ServiceCodeTecnico     string `yaml:"service_code_tecnico"`
	ServiceCodeOutros      string `yaml:"service_code_outros"`
}

type file struct {
	Product  productFile   `yaml:"product"`
	Services []serviceFile `yaml:"services"`
	Filial   filialFile    `yaml:"filial"`
	ERPCodes codesFile     `yaml:"erp_codes"`
}

// Overrides is the resolved configuration after overlaying the file on the defaults.
type Overrides struct {
	Heuristics      normalize.Heuristics
	Codes           domain.ERPCodes
	FilialByDest    map[string]string
	FilialByTomador map[string]string
}

func Defaults() Overrides {
	return Overrides{
		Heuristics: normalize.DefaultHeuristics(),
		Codes:      domain.DefaultERPCodes(),
	}
}

// Load reads path and overlays it on Defaults. An empty path or a missing file yields the defaults.
func Load(path string) (Overrides, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Defaults(), nil
	}
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Defaults(), nil
	}
	if err != nil {
		return Overrides{}, fmt.Errorf("read heuristics: %w", err)
	}
	return Parse(raw)
}

// Parse overlays raw YAML on Defaults. Only the lists and codes present in the document replace
// the built-in values; a services entry replaces the table of the same class.
func Parse(raw []byte) (Overrides, error) {
	var f file
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return Overrides{}, fmt.Errorf("decode heuristics: %w", err)
	}
	out := Defaults()

	p := &out.Heuristics.Product
	overlay(&p.MaterialNCM, f.Product.MaterialNCM)
	overlay(&p.MedicamentoNCM, f.Product.MedicamentoNCM)
	overlay(&p.AmbiguousNCM, f.Product.AmbiguousNCM)
	overlay(&p.MaterialKeywords, f.Product.MaterialKeywords)
	overlay(&p.MedicamentoKeywords, f.Product.MedicamentoKeywords)

	for _, s := range f.Services {
		class := domain.ServiceClass(strings.ToUpper(strings.TrimSpace(s.Class)))
		idx := -1
		for i := range out.Heuristics.Services {
			if out.Heuristics.Services[i].Class == class {
				idx = i
				break
			}
		}
		if idx < 0 {
			return Overrides{}, fmt.Errorf("decode heuristics: unknown service class %q", s.Class)
		}
		overlay(&out.Heuristics.Services[idx].CNAEPrefixes, s.CNAEPrefixes)
		overlay(&out.Heuristics.Services[idx].Keywords, s.Keywords)
	}

	out.FilialByDest = digitKeys(f.Filial.ByDest)
	out.FilialByTomador = digitKeys(f.Filial.ByTomador)

	c := &out.Codes
	code(&c.NFeMovementType, f.ERPCodes.NFeMovementType)
	code(&c.ProductCodeMedicamento, f.ERPCodes.ProductCodeMedicamento)
	code(&c.ProductCodeMaterial, f.ERPCodes.ProductCodeMaterial)
	code(&c.ProductCodeGenerico, f.ERPCodes.ProductCodeGenerico)
	code(&c.NFSeMovementType, f.ERPCodes.NFSeMovementType)
	code(&c.ServiceCodeSaude, f.ERPCodes.ServiceCodeSaude)
	code(&c.ServiceCodeTecnico, f.ERPCodes.ServiceCodeTecnico)
	code(&c.ServiceCodeOutros, f.ERPCodes.ServiceCodeOutros)
	return out, nil
}

func overlay(dst *[]string, src []string) {
	if len(src) == 0 {
		return
	}
	values := make([]string, 0, len(src))
	for _, v := range src {
		if v = strings.TrimSpace(v); v != "" {
			values = append(values, v)
		}
	}
	*dst = values
}

func code(dst *string, src string) {
	if src = strings.TrimSpace(src); src != "" {
		*dst = src
	}
}

func digitKeys(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		var b strings.Builder
		for _, r := range k {
			if r >= '0' && r <= '9' {
				b.WriteRune(r)
			}
		}
		if b.Len() > 0 {
			out[b.String()] = strings.TrimSpace(v)
		}
	}
	return out
}
