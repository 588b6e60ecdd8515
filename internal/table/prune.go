package table

// TechnicalColumns is the set of response-metadata column names removed
// from every table. It is an immutable value injected into Prune, not
// package state.
type TechnicalColumns []string

// DefaultTechnicalColumns returns the pagination and response metadata
// fields emitted by the upstream government APIs.
func DefaultTechnicalColumns() TechnicalColumns {
	return TechnicalColumns{
		"totalRegistros",
		"totalPaginas",
		"paginasRestantes",
		"links",
		"dataHoraConsulta",
		"timeZoneAtual",
		"dataHoraAtualizacao",
	}
}

// Prune removes every technical column present in the table. Absent
// names are no-ops; remaining column order is preserved. Prune is
// idempotent and never fails.
func (t *Table) Prune(technical TechnicalColumns) {
	for _, name := range technical {
		t.Drop(name)
	}
}
