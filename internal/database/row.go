package database

import "github.com/koustreak/dbjoin/internal/errs"

// CollectStrings drains a single-column result set into a slice.
// It always closes rows.
func CollectStrings(rows Rows, what string) ([]string, error) {
	defer rows.Close()

	list := make([]string, 0)
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, wrapQuery("failed to scan "+what, err)
		}
		list = append(list, s)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapQuery("error iterating "+what, err)
	}
	return list, nil
}

// wrapQuery keeps an already-classified error as is and files anything else
// under query_failed.
func wrapQuery(msg string, err error) error {
	if errs.KindOf(err) != errs.ErrKindUnknown {
		return err
	}
	return errs.Wrap(errs.ErrKindQueryFailed, msg, err)
}
