// Package pagination implements Relay connection arguments (§4.8): coercing
// first/after/last/before into a page window over an ordered node list and
// synthesizing the resulting PageInfo/edges shape.
//
// There is no ecosystem cursor codec anywhere in the retrieved example pack,
// so the cursor stays an opaque base64-encoded offset via the standard
// library's encoding/base64 (see DESIGN.md) rather than importing a library
// for a one-line concern.
package pagination

import (
	"encoding/base64"
	"fmt"
	"strconv"

	"github.com/n9te9/federation-core/internal/gqlerr"
)

// Args is the coerced form of a connection field's first/after/last/before
// arguments.
type Args struct {
	First  *int
	After  *string
	Last   *int
	Before *string
}

// Edge is one connection edge: an opaque cursor paired with its node.
type Edge struct {
	Cursor string
	Node   any
}

// Page is the paginator's output: the window of edges plus the PageInfo
// fields defined by the Relay Connections spec.
type Page struct {
	Edges           []Edge
	HasNextPage     bool
	HasPreviousPage bool
	StartCursor     string
	EndCursor       string
}

// encodeCursor/decodeCursor implement the opaque-to-callers, offset-based
// cursor: "connection:<offset>" base64-encoded, following the reference
// Relay server implementations' convention.
func encodeCursor(offset int) string {
	return base64.StdEncoding.EncodeToString([]byte(fmt.Sprintf("connection:%d", offset)))
}

func decodeCursor(cursor string) (int, error) {
	raw, err := base64.StdEncoding.DecodeString(cursor)
	if err != nil {
		return 0, err
	}
	var offset int
	if _, err := fmt.Sscanf(string(raw), "connection:%d", &offset); err != nil {
		return 0, err
	}
	return offset, nil
}

// Paginate applies args over the full ordered node list total, per §8's
// Pagination composition invariant (len(edges) <= first, startCursor/
// endCursor bracket the returned edges) and the resolved has_previous_page
// Open Question (offset-cursor lookback-of-1).
func Paginate(total []any, args Args) (*Page, error) {
	start, end, err := window(len(total), args)
	if err != nil {
		return nil, err
	}

	edges := make([]Edge, 0, end-start)
	for i := start; i < end; i++ {
		edges = append(edges, Edge{Cursor: encodeCursor(i), Node: total[i]})
	}

	page := &Page{Edges: edges}
	if len(edges) > 0 {
		page.StartCursor = edges[0].Cursor
		page.EndCursor = edges[len(edges)-1].Cursor
	}

	page.HasPreviousPage = start > 0
	page.HasNextPage = end < len(total)
	return page, nil
}

// window resolves the [start, end) slice of total that args selects,
// implementing the Relay "ApplyCursorsToEdges" then first/last slicing
// algorithm.
func window(total int, args Args) (start, end int, err error) {
	start, end = 0, total

	if args.After != nil {
		offset, derr := decodeCursor(*args.After)
		if derr != nil {
			return 0, 0, gqlerr.IncorrectScalarValue("String", *args.After)
		}
		if offset+1 > start {
			start = offset + 1
		}
	}
	if args.Before != nil {
		offset, derr := decodeCursor(*args.Before)
		if derr != nil {
			return 0, 0, gqlerr.IncorrectScalarValue("String", *args.Before)
		}
		if offset < end {
			end = offset
		}
	}
	if start > end {
		start = end
	}

	if args.First != nil {
		if *args.First < 0 {
			return 0, 0, gqlerr.IncorrectScalarValue("Int", strconv.Itoa(*args.First))
		}
		if start+*args.First < end {
			end = start + *args.First
		}
	}
	if args.Last != nil {
		if *args.Last < 0 {
			return 0, 0, gqlerr.IncorrectScalarValue("Int", strconv.Itoa(*args.Last))
		}
		if end-*args.Last > start {
			start = end - *args.Last
		}
	}

	return start, end, nil
}
