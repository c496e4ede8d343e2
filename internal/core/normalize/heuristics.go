// Package normalize classifies parsed line items and scores their data quality.
package normalize

import (
	"sort"
	"strings"

	"github.com/kirillkom/fiscal-doc-analyzer/internal/core/convert"
	"github.com/kirillkom/fiscal-doc-analyzer/internal/core/domain"
)

// ProductTables drive NF-e item classification.
type ProductTables struct {
	MaterialNCM         []string
	MedicamentoNCM      []string
	AmbiguousNCM        []string
	MaterialKeywords    []string
	MedicamentoKeywords []string
}

// ServiceTable is one service class with its CNAE prefixes and description keywords.
type ServiceTable struct {
	Class        domain.ServiceClass
	CNAEPrefixes []string
	Keywords     []string
}

// Heuristics holds the ordered classification tables. Tables are data so they can be
// replaced from configuration without touching the matching code.
type Heuristics struct {
	Product  ProductTables
	Services []ServiceTable
}

// DefaultHeuristics returns the built-in tables.
func DefaultHeuristics() Heuristics {
	return Heuristics{
		Product: ProductTables{
			MaterialNCM: []string{
				"9018", "901831", "901832", "901839", "9019", "9021", "9022", "9027",
				"4014", "4015", "401511", "401519", "3923", "3926",
				"4818", "5601", "6210", "6307", "8419", "7017",
				"22072019", "27111910",
			},
			MedicamentoNCM: []string{"3001", "3002", "3003", "3004", "3005", "3006"},
			AmbiguousNCM:   []string{"3005", "3006"},
			MaterialKeywords: []string{
				"SERINGA", "AGULHA", "SCALP", "JELCO", "BUTTERFLY", "CATETER", "SONDA", "FOLLEY", "FOLEY",
				"NASOGASTRICA", "VESICAL", "URETRAL", "RETAL", "ASPIRACAO", "LUVA", "LUVAS", "PROCEDIMENTO",
				"LATEX", "NITRILA", "VINIL", "CIRURGICA", "GAZE", "GAZES", "CURATIVO", "ESPARADRAPO",
				"MICROPORE", "ATADURA", "COMPRESSA", "ALGODAO", "BANDAGEM", "FITA ADESIVA", "TEGADERM",
				"HIDROCOLOIDE", "FILME TRANSPARENTE", "EQUIPO", "EXTENSOR", "TORNEIRA", "TORNEIRINHA",
				"THREE WAY", "TREEWAY", "INFUSAO", "MULTIVIAS", "POLIFIX", "BURETA", "PERFUSOR", "DRENO", "TUBO",
				"TRAQUEOSTOMIA", "CANULA", "ENDOTRAQUEAL", "OROTRAQUEAL", "ASPIRADOR", "BISTURI", "LAMINA",
				"SUTURA", "FIO CIRURGICO", "FIO NYLON", "FIO SEDA", "FIO CATGUT", "FIO VICRYL", "FIO PROLENE",
				"PINÇA", "TESOURA", "PORTA AGULHA", "AFASTADOR", "MASCARA", "MASCARAS", "N95", "PFF2",
				"DESCARTAVEL", "PROTETOR FACIAL", "AVENTAL", "CAMPO", "CAMPO CIRURGICO", "CAMPO ESTERIL",
				"LENCOL", "PROPAPE", "OXIGENIO", "UMIDIFICADOR", "NEBULIZADOR", "INALADOR", "RESERVATORIO",
				"TUBO COLETA", "VACUTAINER", "LANCETA", "COLETOR", "FRASCO COLETA", "SWAB", "ABAIXADOR",
				"ESPECULO", "TERMOMETRO", "ESFIGMO", "ESTETOSCOPIO", "OTOSCOPIO", "BOLSA", "COLETORA", "OSTOMIA",
				"UROSTOMIA", "COLOSTOMIA", "FIXADOR", "FIXACAO", "IMOBILIZADOR", "TALA", "COLAR CERVICAL",
				"FRALDA", "ABSORVENTE", "COXIM", "ALMOFADA", "ESTERIL", "ESTERILIZADO", "AUTOCLAVE",
				"INDICADOR BIOLOGICO", "DISPOSITIVO", "HOSPITALAR", "MEDICO", "DESC",
			},
			MedicamentoKeywords: []string{
				"COMPRIMIDO", "CAPSULA", "AMPOLA", "FRASCO", "SOLUCAO", "XAROPE", "SUSPENSAO", "INJETAVEL",
				"POMADA", "CREME", "GEL", "GOTAS", "SPRAY", "AEROSOL", "SUPOSITORIO", "PATCH",
				"ADESIVO TRANSDERMICO", "COLÍRIO", "COLIRIO", "MG", "MCG", "ML", "UI", "UND", "DOSE",
				"FARMACEUTICO", "DROGA", "PRINCIPIO ATIVO", "GENERICO", "REFERENCIA", "SIMILAR", "VACINA",
				"SORO", "ANTIBIOTICO", "ANALGESICO", "ANTI-INFLAMATORIO", "ANTIINFLAMATORIO", "ANTITERMICO",
				"ANTIPIRETICO", "DIPIRONA", "PARACETAMOL", "IBUPROFENO", "DICLOFENACO", "OMEPRAZOL",
				"RANITIDINA", "AMOXICILINA", "AZITROMICINA", "CEFALEXINA", "CIPROFLOXACINO", "METFORMINA",
				"GLIBENCLAMIDA", "INSULINA", "LOSARTANA", "ENALAPRIL", "CAPTOPRIL", "ATENOLOL", "PROPRANOLOL",
				"SINVASTATINA", "ATORVASTATINA", "CLONAZEPAM", "DIAZEPAM", "RIVOTRIL", "DEXAMETASONA",
				"PREDNISONA", "PREDNISOLONA", "HIDROCORTISONA", "TRAMADOL", "MORFINA", "CODEINA", "FENTANIL",
				"ONDANSETRONA", "METOCLOPRAMIDA", "BROMOPRIDA", "FUROSEMIDA", "HIDROCLOROTIAZIDA",
				"ESPIRONOLACTONA", "HEPARINA", "ENOXAPARINA", "CLEXANE", "WARFARINA", "ADRENALINA", "EPINEFRINA",
				"NORADRENALINA", "DOPAMINA", "DOBUTAMINA", "FISIOLOGICO", "RINGER", "GLICOSADO", "MANITOL",
				"LIDOCAINA", "BUPIVACAINA", "ROPIVACAINA", "MIDAZOLAM", "PROPOFOL", "KETAMINA", "ETOMIDATO",
				"ATROPINA", "NEOSTIGMINA", "CLOREXIDINA", "IODOPOVIDONA", "PVPI",
			},
		},
		Services: []ServiceTable{
			{
				Class:        domain.ServiceSaude,
				CNAEPrefixes: []string{"86", "8610", "8620", "8630", "8640", "8650", "8660", "8690", "87"},
				Keywords: []string{
					"MEDIC", "HOSPITAL", "CLINIC", "SAUDE", "ENFERM", "CIRURG", "CONSULT", "HONOR",
					"ATENDIMENTO", "PACIENTE", "EXAME", "DIAGNOS", "TERAPIA", "TRATAMENTO", "FISIO",
					"ODONTO", "PSICO", "NUTRI", "LABOR", "PATOLOG", "RADIOLOG", "ULTRASSOM", "TOMOGRAF",
				},
			},
			{
				Class:        domain.ServiceTecnico,
				CNAEPrefixes: []string{"71", "72", "73", "74", "62", "63"},
				Keywords: []string{
					"SISTEMA", "SOFTWARE", "PROGRAMA", "DESENVOLV", "T.I.", "TI ", "INFORMATIC",
					"TECNOLOG", "SUPORTE", "REDE", "SERVIDOR", "ENGENHAR", "ARQUITET", "PROJETO",
					"LAUDO", "VISTORIA", "PESQUISA", "PUBLICIDADE", "MARKETING", "DESIGN",
				},
			},
			{
				Class:        domain.ServiceConsultoria,
				CNAEPrefixes: []string{"70", "7020"},
				Keywords: []string{
					"CONSULTORIA", "ASSESSORIA", "PLANEJAMENTO", "GESTAO", "ESTRATEG", "ANALISE",
					"DIAGNOSTICO", "PARECER", "ORIENT", "COACHING", "MENTORIA", "TREINAMENTO",
				},
			},
			{
				Class:        domain.ServiceAdministrativo,
				CNAEPrefixes: []string{"82", "78", "80", "81"},
				Keywords: []string{
					"ADMINISTRAT", "ESCRITORIO", "SECRETAR", "RECEP", "VIGILANCIA", "SEGURANCA",
					"LIMPEZA", "CONSERV", "PORTARIA", "ZELADORIA", "COPEIRA", "TERCEIRIZ",
				},
			},
			{
				Class:        domain.ServiceManutencao,
				CNAEPrefixes: []string{"33", "95", "45"},
				Keywords: []string{
					"MANUTENCAO", "REPARO", "CONSERTO", "INSTALAC", "REVISAO", "PREVENTIV",
					"CORRETIV", "ASSISTENCIA",
				},
			},
		},
	}
}

// compiled is the matching form of Heuristics: folded keywords and NCM prefixes
// ordered longest first.
type compiled struct {
	materialNCM         []string
	medicamentoNCM      []string
	ambiguousNCM        map[string]bool
	materialKeywords    []string
	medicamentoKeywords []string
	services            []ServiceTable
}

func compile(h Heuristics) compiled {
	c := compiled{
		materialNCM:         longestFirst(h.Product.MaterialNCM),
		medicamentoNCM:      longestFirst(h.Product.MedicamentoNCM),
		ambiguousNCM:        map[string]bool{},
		materialKeywords:    foldAll(h.Product.MaterialKeywords),
		medicamentoKeywords: foldAll(h.Product.MedicamentoKeywords),
	}
	for _, p := range h.Product.AmbiguousNCM {
		c.ambiguousNCM[convert.DigitsOnly(p)] = true
	}
	for _, s := range h.Services {
		c.services = append(c.services, ServiceTable{
			Class:        s.Class,
			CNAEPrefixes: digitsAll(s.CNAEPrefixes),
			Keywords:     foldAll(s.Keywords),
		})
	}
	return c
}

func longestFirst(prefixes []string) []string {
	out := digitsAll(prefixes)
	sort.SliceStable(out, func(i, j int) bool { return len(out[i]) > len(out[j]) })
	return out
}

func digitsAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, p := range in {
		if d := convert.DigitsOnly(p); d != "" {
			out = append(out, d)
		}
	}
	return out
}

// foldAll upper-cases and strips accents. Whitespace is kept so "TI " still
// needs a trailing space.
func foldAll(in []string) []string {
	out := make([]string, 0, len(in))
	seen := map[string]bool{}
	for _, k := range in {
		f := convert.FoldUpper(k)
		if strings.TrimSpace(f) == "" || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}

func matchPrefix(code string, prefixes []string) (string, bool) {
	if code == "" {
		return "", false
	}
	for _, p := range prefixes {
		if strings.HasPrefix(code, p) {
			return p, true
		}
	}
	return "", false
}

func containsAny(text string, keywords []string) bool {
	if text == "" {
		return false
	}
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}
