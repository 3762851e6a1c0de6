package semantic

import (
	"fmt"

	"github.com/wudi/pdfredact/ir/raw"
	"github.com/wudi/pdfredact/observability"
)

func parseResources(obj raw.Object, resolver rawResolver, log observability.Logger) (*Resources, error) {
	var origRef raw.ObjectRef
	if ref, ok := obj.(raw.Reference); ok {
		origRef = ref.Ref()
	}
	dict, ok := resolveDict(obj, resolver)
	if !ok {
		return nil, fmt.Errorf("resources is not a dict")
	}

	res := &Resources{
		Fonts:       make(map[string]*Font),
		XObjects:    make(map[string]*XObject),
		OriginalRef: origRef,
		Dict:        dict,
	}

	if fontsObj, ok := dict.Get(raw.NameLiteral("Font")); ok {
		if fontsDict, ok := resolveDict(fontsObj, resolver); ok {
			for _, k := range fontsDict.Keys() {
				v, _ := fontsDict.Get(k)
				font, err := parseFont(v, resolver)
				if err != nil {
					log.Warn("skipping unparseable font resource",
						observability.String("font", k.Value()), observability.Error("error", err))
					continue
				}
				font.Name = k.Value()
				res.Fonts[k.Value()] = font
			}
		}
	}

	if xobjObj, ok := dict.Get(raw.NameLiteral("XObject")); ok {
		if xobjDict, ok := resolveDict(xobjObj, resolver); ok {
			for _, k := range xobjDict.Keys() {
				v, _ := xobjDict.Get(k)
				x, err := parseXObject(v, resolver, log)
				if err != nil {
					log.Warn("skipping unparseable XObject",
						observability.String("name", k.Value()), observability.Error("error", err))
					continue
				}
				res.XObjects[k.Value()] = x
			}
		}
	}

	return res, nil
}

func parseFont(obj raw.Object, resolver rawResolver) (*Font, error) {
	var origRef raw.ObjectRef
	if ref, ok := obj.(raw.Reference); ok {
		origRef = ref.Ref()
	}
	dict, ok := resolveDict(obj, resolver)
	if !ok {
		return nil, fmt.Errorf("font is not a dict")
	}

	font := &Font{
		Subtype:     "Type1",
		OriginalRef: origRef,
		Widths:      make(map[int]int),
	}

	if v, ok := dict.Get(raw.NameLiteral("Subtype")); ok {
		if n, ok := v.(raw.NameObj); ok {
			font.Subtype = n.Value()
		}
	}
	if v, ok := dict.Get(raw.NameLiteral("BaseFont")); ok {
		if n, ok := v.(raw.NameObj); ok {
			font.BaseFont = n.Value()
		}
	}
	if v, ok := dict.Get(raw.NameLiteral("Encoding")); ok {
		switch e := v.(type) {
		case raw.NameObj:
			font.Encoding = e.Value()
		default:
			if encDict, ok := resolveDict(v, resolver); ok {
				font.EncodingDict = parseEncodingDict(encDict)
				if font.EncodingDict != nil {
					font.Encoding = font.EncodingDict.BaseEncoding
				}
			}
		}
	}

	if v, ok := dict.Get(raw.NameLiteral("FirstChar")); ok {
		if n, ok := v.(raw.NumberObj); ok {
			font.FirstChar = int(n.Int())
		}
	}
	if v, ok := dict.Get(raw.NameLiteral("Widths")); ok {
		if arr, ok := resolveArray(v, resolver); ok {
			for i, item := range arr.Items {
				if n, ok := item.(raw.NumberObj); ok {
					font.Widths[font.FirstChar+i] = int(n.Int())
				}
			}
		}
	}

	if v, ok := dict.Get(raw.NameLiteral("ToUnicode")); ok {
		if data, ok := streamBytes(v, resolver); ok {
			font.ToUnicodeCMap = data
		}
	}

	if v, ok := dict.Get(raw.NameLiteral("FontDescriptor")); ok {
		if fd, err := parseFontDescriptor(v, resolver); err == nil {
			font.Descriptor = fd
		}
	}

	if v, ok := dict.Get(raw.NameLiteral("DescendantFonts")); ok {
		if arr, ok := resolveArray(v, resolver); ok && len(arr.Items) > 0 {
			if cid, err := parseCIDFont(arr.Items[0], resolver); err == nil {
				font.DescendantFont = cid
			}
		}
	}

	return font, nil
}

func parseEncodingDict(dict *raw.DictObj) *EncodingDict {
	enc := &EncodingDict{}
	if v, ok := dict.Get(raw.NameLiteral("BaseEncoding")); ok {
		if n, ok := v.(raw.NameObj); ok {
			enc.BaseEncoding = n.Value()
		}
	}
	if v, ok := dict.Get(raw.NameLiteral("Differences")); ok {
		if arr, ok := v.(*raw.ArrayObj); ok {
			code := 0
			for _, item := range arr.Items {
				switch e := item.(type) {
				case raw.NumberObj:
					code = int(e.Int())
				case raw.NameObj:
					enc.Differences = append(enc.Differences, EncodingDifference{Code: code, Name: e.Value()})
					code++
				}
			}
		}
	}
	return enc
}

func parseCIDFont(obj raw.Object, resolver rawResolver) (*CIDFont, error) {
	dict, ok := resolveDict(obj, resolver)
	if !ok {
		return nil, fmt.Errorf("descendant font is not a dict")
	}

	cid := &CIDFont{DW: 1000, W: make(map[int]int)}

	if v, ok := dict.Get(raw.NameLiteral("Subtype")); ok {
		if n, ok := v.(raw.NameObj); ok {
			cid.Subtype = n.Value()
		}
	}
	if v, ok := dict.Get(raw.NameLiteral("BaseFont")); ok {
		if n, ok := v.(raw.NameObj); ok {
			cid.BaseFont = n.Value()
		}
	}
	if v, ok := dict.Get(raw.NameLiteral("DW")); ok {
		if n, ok := v.(raw.NumberObj); ok {
			cid.DW = int(n.Int())
		}
	}
	if v, ok := dict.Get(raw.NameLiteral("W")); ok {
		if arr, ok := resolveArray(v, resolver); ok {
			parseCIDWidths(arr, resolver, cid.W)
		}
	}
	if v, ok := dict.Get(raw.NameLiteral("CIDToGIDMap")); ok {
		if n, ok := v.(raw.NameObj); ok {
			cid.CIDToGIDMapName = n.Value()
		}
	}
	if v, ok := dict.Get(raw.NameLiteral("CIDSystemInfo")); ok {
		if csi, ok := resolveDict(v, resolver); ok {
			if r, ok := csi.Get(raw.NameLiteral("Registry")); ok {
				if s, ok := r.(raw.StringObj); ok {
					cid.CIDSystemInfo.Registry = string(s.Value())
				}
			}
			if o, ok := csi.Get(raw.NameLiteral("Ordering")); ok {
				if s, ok := o.(raw.StringObj); ok {
					cid.CIDSystemInfo.Ordering = string(s.Value())
				}
			}
			if sup, ok := csi.Get(raw.NameLiteral("Supplement")); ok {
				if n, ok := sup.(raw.NumberObj); ok {
					cid.CIDSystemInfo.Supplement = int(n.Int())
				}
			}
		}
	}
	if v, ok := dict.Get(raw.NameLiteral("FontDescriptor")); ok {
		if fd, err := parseFontDescriptor(v, resolver); err == nil {
			cid.Descriptor = fd
		}
	}

	return cid, nil
}

// parseCIDWidths reads the /W array: pairs of [start array] or
// triples of start end width.
func parseCIDWidths(arr *raw.ArrayObj, resolver rawResolver, out map[int]int) {
	items := arr.Items
	for i := 0; i < len(items); {
		start, ok := items[i].(raw.NumberObj)
		if !ok {
			return
		}
		i++
		if i >= len(items) {
			return
		}
		if inner, ok := resolveArray(items[i], resolver); ok {
			cid := int(start.Int())
			for _, w := range inner.Items {
				if n, ok := w.(raw.NumberObj); ok {
					out[cid] = int(n.Int())
				}
				cid++
			}
			i++
			continue
		}
		end, ok := items[i].(raw.NumberObj)
		if !ok || i+1 >= len(items) {
			return
		}
		w, ok := items[i+1].(raw.NumberObj)
		if !ok {
			return
		}
		for cid := int(start.Int()); cid <= int(end.Int()); cid++ {
			out[cid] = int(w.Int())
		}
		i += 2
	}
}

func parseFontDescriptor(obj raw.Object, resolver rawResolver) (*FontDescriptor, error) {
	dict, ok := resolveDict(obj, resolver)
	if !ok {
		return nil, fmt.Errorf("font descriptor is not a dict")
	}

	fd := &FontDescriptor{}
	if v, ok := dict.Get(raw.NameLiteral("FontName")); ok {
		if n, ok := v.(raw.NameObj); ok {
			fd.FontName = n.Value()
		}
	}
	if v, ok := dict.Get(raw.NameLiteral("Flags")); ok {
		if n, ok := v.(raw.NumberObj); ok {
			fd.Flags = int(n.Int())
		}
	}
	if v, ok := dict.Get(raw.NameLiteral("ItalicAngle")); ok {
		if n, ok := v.(raw.NumberObj); ok {
			fd.ItalicAngle = n.Float()
		}
	}
	if v, ok := dict.Get(raw.NameLiteral("Ascent")); ok {
		if n, ok := v.(raw.NumberObj); ok {
			fd.Ascent = n.Float()
		}
	}
	if v, ok := dict.Get(raw.NameLiteral("Descent")); ok {
		if n, ok := v.(raw.NumberObj); ok {
			fd.Descent = n.Float()
		}
	}
	if v, ok := dict.Get(raw.NameLiteral("CapHeight")); ok {
		if n, ok := v.(raw.NumberObj); ok {
			fd.CapHeight = n.Float()
		}
	}
	if v, ok := dict.Get(raw.NameLiteral("StemV")); ok {
		if n, ok := v.(raw.NumberObj); ok {
			fd.StemV = int(n.Int())
		}
	}
	if v, ok := dict.Get(raw.NameLiteral("FontBBox")); ok {
		nums := parseNumberArray(v, resolver)
		if len(nums) >= 4 {
			copy(fd.FontBBox[:], nums[:4])
		}
	}
	for _, key := range []string{"FontFile", "FontFile2", "FontFile3"} {
		if v, ok := dict.Get(raw.NameLiteral(key)); ok {
			if data, ok := streamBytes(v, resolver); ok {
				fd.FontFile = data
				fd.FontFileType = key
			}
			break
		}
	}
	return fd, nil
}

func parseXObject(obj raw.Object, resolver rawResolver, log observability.Logger) (*XObject, error) {
	var origRef raw.ObjectRef
	if ref, ok := obj.(raw.Reference); ok {
		origRef = ref.Ref()
		resolved, err := resolver.Resolve(ref.Ref())
		if err != nil {
			return nil, err
		}
		obj = resolved
	}
	stream, ok := obj.(*raw.StreamObj)
	if !ok {
		return nil, fmt.Errorf("XObject is not a stream")
	}

	x := &XObject{OriginalRef: origRef}
	if v, ok := stream.Dict.Get(raw.NameLiteral("Subtype")); ok {
		if n, ok := v.(raw.NameObj); ok {
			x.Subtype = n.Value()
		}
	}
	if v, ok := stream.Dict.Get(raw.NameLiteral("Width")); ok {
		if n, ok := v.(raw.NumberObj); ok {
			x.Width = int(n.Int())
		}
	}
	if v, ok := stream.Dict.Get(raw.NameLiteral("Height")); ok {
		if n, ok := v.(raw.NumberObj); ok {
			x.Height = int(n.Int())
		}
	}

	if x.Subtype == "Form" {
		if v, ok := stream.Dict.Get(raw.NameLiteral("BBox")); ok {
			if r := parseRectangleFromObj(v, resolver); r != nil {
				x.BBox = *r
			}
		}
		if v, ok := stream.Dict.Get(raw.NameLiteral("Matrix")); ok {
			x.Matrix = parseNumberArray(v, resolver)
		}
		if v, ok := stream.Dict.Get(raw.NameLiteral("Resources")); ok {
			if res, err := parseResources(v, resolver, log); err == nil {
				x.Resources = res
			}
		}
		data, ok := resolver.StreamData(origRef)
		if !ok {
			var err error
			data, err = decodeStream(stream)
			if err != nil {
				return nil, fmt.Errorf("decode form content: %w", err)
			}
		}
		x.Data = data
	}

	return x, nil
}

// streamBytes resolves obj to a stream and returns its decoded data.
func streamBytes(obj raw.Object, resolver rawResolver) ([]byte, bool) {
	var ref raw.ObjectRef
	if r, ok := obj.(raw.Reference); ok {
		ref = r.Ref()
		resolved, err := resolver.Resolve(r.Ref())
		if err != nil {
			return nil, false
		}
		obj = resolved
	}
	stream, ok := obj.(*raw.StreamObj)
	if !ok {
		return nil, false
	}
	if data, ok := resolver.StreamData(ref); ok {
		return data, true
	}
	data, err := decodeStream(stream)
	if err != nil {
		return nil, false
	}
	return data, true
}
