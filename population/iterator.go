package population

import (
	"context"
	"fmt"

	"f0oster/reconspy/identity"
	"f0oster/reconspy/store"
)

// PageSize is fixed for report runs.
const PageSize = 10

// Iterator yields the population of one object kind page by page, hiding
// pagination from the caller. A nil condition matches the whole kind.
type Iterator struct {
	Search store.AnySearchDAO
}

// ForEachPage counts the matching objects under the full-admin realm
// scope, then fetches ⌈count/PageSize⌉ pages and hands each to fn. A zero
// count issues no page query at all. Cancellation is cooperative: once the
// context is done no further page is fetched, but the page already handed
// to fn is not interrupted.
func (it *Iterator) ForEachPage(
	ctx context.Context,
	cond *store.SearchCond,
	kind identity.Kind,
	fn func([]identity.Any) error,
) error {

	count, err := it.Search.Count(ctx, store.FullAdminRealms, cond, kind)
	if err != nil {
		return fmt.Errorf("counting %s population: %w", kind, err)
	}
	if count == 0 {
		return nil
	}

	pages := (count + PageSize - 1) / PageSize
	for page := 1; page <= pages; page++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		objects, err := it.Search.Search(ctx, store.FullAdminRealms, cond, page, PageSize, nil, kind)
		if err != nil {
			return fmt.Errorf("fetching %s page %d: %w", kind, page, err)
		}

		if err := fn(objects); err != nil {
			return err
		}
	}

	return nil
}
