package summary

import (
	"fmt"
	"strings"

	"github.com/sigurdp/exp-smry2parquet/pkg/models"
)

// VarType is the category of a summary vector, derived from its keyword.
type VarType int

const (
	VarMisc VarType = iota
	VarField
	VarWell
	VarGroup
	VarRegion
	VarBlock
	VarCompletion
	VarSegment
	VarAquifer
	VarLocal
)

func (v VarType) String() string {
	switch v {
	case VarField:
		return "field"
	case VarWell:
		return "well"
	case VarGroup:
		return "group"
	case VarRegion:
		return "region"
	case VarBlock:
		return "block"
	case VarCompletion:
		return "completion"
	case VarSegment:
		return "segment"
	case VarAquifer:
		return "aquifer"
	case VarLocal:
		return "local"
	}
	return "misc"
}

// dummyWGName marks nodes that belong to no well or group.
const dummyWGName = ":+:+:+:+"

// Keywords that start with a category letter but are simulator
// performance vectors.
var miscKeywords = map[string]bool{
	"NEWTON":   true,
	"NAIMFRAC": true,
	"NLINEARS": true,
	"NLINSMIN": true,
	"NLINSMAX": true,
	"ELAPSED":  true,
	"MAXDPR":   true,
	"MAXDSO":   true,
	"MAXDSG":   true,
	"MAXDSW":   true,
	"STEPTYPE": true,
	"WNEWTON":  true,
}

// Keyword bodies (category letter removed) of cumulative vectors.
var totalKeywords = map[string]bool{
	"OPT": true, "GPT": true, "WPT": true, "GIT": true, "WIT": true,
	"OPTF": true, "OPTS": true, "OIT": true, "OVPT": true, "OVIT": true,
	"MWT": true, "WVPT": true, "WVIT": true, "GMT": true, "GPTF": true,
	"SGT": true, "GST": true, "FGT": true, "GCT": true, "GIMT": true,
	"WGPT": true, "WGIT": true, "EGT": true, "EXGT": true, "GVPT": true,
	"GVIT": true, "LPT": true, "VPT": true, "VIT": true, "NPT": true,
	"NIT": true, "CPT": true, "CIT": true,
}

// Keyword bodies of instantaneous flow rates. Ratios such as WCT and GOR
// are deliberately absent.
var rateKeywords = map[string]bool{
	"OPR": true, "GPR": true, "WPR": true, "LPR": true, "VPR": true,
	"OIR": true, "GIR": true, "WIR": true, "VIR": true, "LIR": true,
	"GLIR": true, "NPR": true, "NIR": true, "CPR": true, "CIR": true,
	"OFR": true, "GFR": true, "WFR": true,
}

// Classify returns the category of keyword.
func Classify(keyword string) VarType {
	if keyword == "" || miscKeywords[keyword] {
		return VarMisc
	}
	switch keyword[0] {
	case 'A':
		return VarAquifer
	case 'B':
		return VarBlock
	case 'C':
		return VarCompletion
	case 'F':
		return VarField
	case 'G':
		return VarGroup
	case 'R':
		return VarRegion
	case 'S':
		return VarSegment
	case 'W':
		return VarWell
	case 'L':
		return VarLocal
	}
	return VarMisc
}

func (v VarType) hasWGName() bool {
	return v == VarWell || v == VarGroup || v == VarCompletion || v == VarSegment
}

func (v VarType) hasNum() bool {
	switch v {
	case VarRegion, VarBlock, VarCompletion, VarSegment, VarAquifer:
		return true
	}
	return false
}

// IsTotal reports whether keyword is a cumulative vector. A trailing H
// (historical) is ignored.
func IsTotal(keyword string) bool {
	switch Classify(keyword) {
	case VarField, VarWell, VarGroup, VarRegion, VarCompletion, VarSegment:
	default:
		return false
	}
	body := keyword[1:]
	if totalKeywords[body] {
		return true
	}
	return strings.HasSuffix(body, "H") && totalKeywords[strings.TrimSuffix(body, "H")]
}

// IsRate reports whether keyword is an instantaneous flow rate.
func IsRate(keyword string) bool {
	switch Classify(keyword) {
	case VarField, VarWell, VarGroup, VarRegion, VarCompletion, VarSegment:
	default:
		return false
	}
	body := keyword[1:]
	return rateKeywords[body] || rateKeywords[strings.TrimSuffix(body, "H")]
}

// IsHistorical reports whether keyword is an observed (history) vector.
func IsHistorical(keyword string) bool {
	switch Classify(keyword) {
	case VarField, VarWell, VarGroup:
		return len(keyword) > 1 && strings.HasSuffix(keyword, "H")
	}
	return false
}

// Node is one entry of the summary specification.
type Node struct {
	Index   int
	Keyword string
	WGName  string
	Num     int
	Unit    string
	Type    VarType
}

// Grid holds the dimensions used to render block coordinates.
type Grid struct {
	NX, NY, NZ int
}

func (g Grid) ijk(num int) (int, int, int, bool) {
	if g.NX <= 0 || g.NY <= 0 || num <= 0 {
		return 0, 0, 0, false
	}
	n := num - 1
	return n%g.NX + 1, (n/g.NX)%g.NY + 1, n/(g.NX*g.NY) + 1, true
}

// Key returns the vector name of n, or false when the node carries no
// addressable vector (local grids, dummy well names, missing numbers).
func (n Node) Key(g Grid) (string, bool) {
	wg := strings.TrimSpace(n.WGName)
	if n.Type.hasWGName() && (wg == "" || wg == dummyWGName) {
		return "", false
	}

	switch n.Type {
	case VarLocal:
		return "", false
	case VarMisc, VarField:
		return n.Keyword, true
	case VarWell, VarGroup:
		return n.Keyword + ":" + wg, true
	case VarRegion, VarAquifer:
		if n.Num <= 0 {
			return "", false
		}
		return fmt.Sprintf("%s:%d", n.Keyword, n.Num), true
	case VarBlock:
		i, j, k, ok := g.ijk(n.Num)
		if !ok {
			return "", false
		}
		return fmt.Sprintf("%s:%d,%d,%d", n.Keyword, i, j, k), true
	case VarCompletion:
		i, j, k, ok := g.ijk(n.Num)
		if !ok {
			return "", false
		}
		return fmt.Sprintf("%s:%s:%d,%d,%d", n.Keyword, wg, i, j, k), true
	case VarSegment:
		if n.Num <= 0 {
			return "", false
		}
		return fmt.Sprintf("%s:%s:%d", n.Keyword, wg, n.Num), true
	}
	return "", false
}

// Meta returns the metadata record of n.
func (n Node) Meta() models.ColumnMeta {
	meta := models.ColumnMeta{
		Unit:         n.Unit,
		IsTotal:      IsTotal(n.Keyword),
		IsRate:       IsRate(n.Keyword),
		IsHistorical: IsHistorical(n.Keyword),
		Keyword:      n.Keyword,
	}
	if n.Type.hasWGName() {
		meta.WGName = strings.TrimSpace(n.WGName)
	}
	if n.Type.hasNum() {
		meta = meta.WithNum(n.Num)
	}
	return meta
}
