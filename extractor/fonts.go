package extractor

import "sort"

// FontInfo summarizes a font referenced by one or more pages.
type FontInfo struct {
	ResourceName string
	BaseFont     string
	Subtype      string
	Encoding     string
	Embedded     bool
	HasToUnicode bool
	Pages        []int
}

// ExtractFonts reports the distinct fonts referenced by pages and their usage.
func (e *Extractor) ExtractFonts() []FontInfo {
	type key struct {
		base, subtype string
	}
	fontMap := make(map[key]*FontInfo)
	var order []key
	for _, page := range e.doc.Pages {
		if page.Resources == nil {
			continue
		}
		for name, font := range page.Resources.Fonts {
			k := key{base: font.BaseFont, subtype: font.Subtype}
			info, ok := fontMap[k]
			if !ok {
				info = &FontInfo{
					ResourceName: name,
					BaseFont:     font.BaseFont,
					Subtype:      font.Subtype,
					Encoding:     font.Encoding,
					Embedded:     len(embeddedFontBytes(font)) > 0,
					HasToUnicode: len(font.ToUnicodeCMap) > 0,
				}
				fontMap[k] = info
				order = append(order, k)
			}
			if !containsInt(info.Pages, page.Index) {
				info.Pages = append(info.Pages, page.Index)
			}
		}
	}
	out := make([]FontInfo, 0, len(fontMap))
	for _, k := range order {
		info := fontMap[k]
		sort.Ints(info.Pages)
		out = append(out, *info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BaseFont < out[j].BaseFont })
	return out
}

func containsInt(xs []int, v int) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}
