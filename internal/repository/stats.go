package repository

import (
	"context"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/taxdocs/constants"
	"github.com/joseph-ayodele/taxdocs/internal/common"
)

// Stats summarizes the document table for dashboards and the CLI.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	crypto := make([]any, 0, len(constants.CryptoFormTypes))
	for _, ft := range constants.CryptoFormTypes {
		crypto = append(crypto, string(ft))
	}

	var st Stats
	counts := []struct {
		dst  *int
		pred *entsql.Predicate
	}{
		{&st.Total, nil},
		{&st.NeedsReview, entsql.EQ("needs_review", true)},
		{&st.Processed, entsql.EQ("status", string(constants.StatusProcessed))},
		{&st.ReadyToExport, entsql.And(
			entsql.EQ("status", string(constants.StatusProcessed)),
			entsql.EQ("needs_review", false),
		)},
		{&st.CryptoDocs, entsql.In("doc_type", crypto...)},
	}
	for _, c := range counts {
		sel := s.b.Select(entsql.Count("*")).From(s.b.Table(tableDocuments))
		if c.pred != nil {
			sel.Where(c.pred)
		}
		query, args := sel.Query()
		if err := s.db.QueryRowContext(ctx, query, args...).Scan(c.dst); err != nil {
			s.logger.Error("store.stats.failed", "error", err)
			return Stats{}, common.NewDatabaseError("count documents", err)
		}
	}
	return st, nil
}
