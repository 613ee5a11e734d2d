package provider

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidRef is returned for a malformed or unrecognized resource
// reference. No side effects are performed for such a reference.
var ErrInvalidRef = errors.New("invalid resource reference")

// RefKind is the closed set of resource kinds the provider serves. A
// reference string is matched exactly once, at the boundary, into a typed
// Ref; everything past ParseRef dispatches on the tag.
type RefKind int

const (
	RefItems RefKind = iota + 1 // "item": all items
	RefItem                     // "item/{id}": one item
	RefItemNext                 // "item/next": the next classifiable item
	RefFile                     // "file/{id}": one cached-file record
	RefAnswers                  // "classification-answer": all answer rows
	RefAnswer                   // "classification-answer/{id}"
	RefCheckboxes               // "classification-checkbox": all checkbox rows
	RefCheckbox                 // "classification-checkbox/{id}"
)

// Ref is a parsed resource reference. ID is meaningful only for the
// single-row kinds.
type Ref struct {
	Kind RefKind
	ID   int64
}

const (
	refPartItem     = "item"
	refPartNext     = "next"
	refPartFile     = "file"
	refPartAnswer   = "classification-answer"
	refPartCheckbox = "classification-checkbox"
)

// ParseRef matches a reference string against the fixed table of resource
// patterns. A missing or malformed numeric id segment is an ErrInvalidRef,
// the same as an unknown resource name.
func ParseRef(s string) (Ref, error) {
	name, rest, hasRest := strings.Cut(s, "/")

	switch name {
	case refPartItem:
		if !hasRest {
			return Ref{Kind: RefItems}, nil
		}
		if rest == refPartNext {
			return Ref{Kind: RefItemNext}, nil
		}
		return parseIDRef(s, RefItem, rest)
	case refPartFile:
		if !hasRest {
			return Ref{}, fmt.Errorf("%w: %q", ErrInvalidRef, s)
		}
		return parseIDRef(s, RefFile, rest)
	case refPartAnswer:
		if !hasRest {
			return Ref{Kind: RefAnswers}, nil
		}
		return parseIDRef(s, RefAnswer, rest)
	case refPartCheckbox:
		if !hasRest {
			return Ref{Kind: RefCheckboxes}, nil
		}
		return parseIDRef(s, RefCheckbox, rest)
	}

	return Ref{}, fmt.Errorf("%w: %q", ErrInvalidRef, s)
}

func parseIDRef(full string, kind RefKind, idPart string) (Ref, error) {
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil || id < 0 {
		return Ref{}, fmt.Errorf("%w: %q", ErrInvalidRef, full)
	}
	return Ref{Kind: kind, ID: id}, nil
}

// ItemRef returns the reference for one item row.
func ItemRef(id int64) Ref { return Ref{Kind: RefItem, ID: id} }

func (r Ref) String() string {
	switch r.Kind {
	case RefItems:
		return refPartItem
	case RefItem:
		return fmt.Sprintf("%s/%d", refPartItem, r.ID)
	case RefItemNext:
		return refPartItem + "/" + refPartNext
	case RefFile:
		return fmt.Sprintf("%s/%d", refPartFile, r.ID)
	case RefAnswers:
		return refPartAnswer
	case RefAnswer:
		return fmt.Sprintf("%s/%d", refPartAnswer, r.ID)
	case RefCheckboxes:
		return refPartCheckbox
	case RefCheckbox:
		return fmt.Sprintf("%s/%d", refPartCheckbox, r.ID)
	}
	return fmt.Sprintf("ref(%d)", r.Kind)
}
