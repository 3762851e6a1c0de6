package semantic

import (
	"context"
	"fmt"

	"github.com/wudi/pdfredact/filters"
	"github.com/wudi/pdfredact/ir/raw"
	"github.com/wudi/pdfredact/observability"
)

type inheritedPageProps struct {
	MediaBox  *Rectangle
	CropBox   *Rectangle
	Rotate    *int
	Resources raw.Object
}

// parsePages traverses the page tree and returns a flat list of pages.
func parsePages(obj raw.Object, resolver rawResolver, inherited inheritedPageProps, log observability.Logger) ([]*Page, error) {
	var pageRef raw.ObjectRef
	if ref, ok := obj.(raw.Reference); ok {
		pageRef = ref.Ref()
		resolved, err := resolver.Resolve(ref.Ref())
		if err != nil {
			return nil, err
		}
		obj = resolved
	}

	dict, ok := obj.(*raw.DictObj)
	if !ok {
		return nil, fmt.Errorf("pages object is not a dictionary")
	}

	newInherited := inherited
	if mbObj, ok := dict.Get(raw.NameLiteral("MediaBox")); ok {
		if mb := parseRectangleFromObj(mbObj, resolver); mb != nil {
			newInherited.MediaBox = mb
		}
	}
	if cbObj, ok := dict.Get(raw.NameLiteral("CropBox")); ok {
		if cb := parseRectangleFromObj(cbObj, resolver); cb != nil {
			newInherited.CropBox = cb
		}
	}
	if rotObj, ok := dict.Get(raw.NameLiteral("Rotate")); ok {
		if r, ok := rotObj.(raw.NumberObj); ok {
			val := int(r.Int())
			newInherited.Rotate = &val
		}
	}
	if resObj, ok := dict.Get(raw.NameLiteral("Resources")); ok {
		newInherited.Resources = resObj
	}

	isPage := false
	if typeVal, ok := dict.Get(raw.NameLiteral("Type")); ok {
		if name, ok := typeVal.(raw.NameObj); ok && name.Value() == "Page" {
			isPage = true
		}
	} else if _, hasKids := dict.Get(raw.NameLiteral("Kids")); !hasKids {
		// No Type and no Kids: treat as a leaf page.
		isPage = true
	}

	if isPage {
		page, err := parsePage(dict, resolver, newInherited, log)
		if err != nil {
			return nil, err
		}
		page.OriginalRef = pageRef
		return []*Page{page}, nil
	}

	kidsObj, ok := dict.Get(raw.NameLiteral("Kids"))
	if !ok {
		return nil, fmt.Errorf("pages node missing Kids")
	}
	kidsArr, ok := resolveArray(kidsObj, resolver)
	if !ok {
		return nil, fmt.Errorf("Kids is not an array")
	}

	var pages []*Page
	for _, kid := range kidsArr.Items {
		subPages, err := parsePages(kid, resolver, newInherited, log)
		if err != nil {
			log.Warn("skipping unparseable page tree node", observability.Error("error", err))
			continue
		}
		pages = append(pages, subPages...)
	}
	return pages, nil
}

func parsePage(dict *raw.DictObj, resolver rawResolver, inherited inheritedPageProps, log observability.Logger) (*Page, error) {
	page := &Page{}

	if mbObj, ok := dict.Get(raw.NameLiteral("MediaBox")); ok {
		if mb := parseRectangleFromObj(mbObj, resolver); mb != nil {
			page.MediaBox = *mb
		}
	} else if inherited.MediaBox != nil {
		page.MediaBox = *inherited.MediaBox
	} else {
		// US Letter default.
		page.MediaBox = Rectangle{0, 0, 612, 792}
	}

	if cbObj, ok := dict.Get(raw.NameLiteral("CropBox")); ok {
		if cb := parseRectangleFromObj(cbObj, resolver); cb != nil {
			page.CropBox = *cb
		}
	} else if inherited.CropBox != nil {
		page.CropBox = *inherited.CropBox
	} else {
		page.CropBox = page.MediaBox
	}

	if rotObj, ok := dict.Get(raw.NameLiteral("Rotate")); ok {
		if r, ok := rotObj.(raw.NumberObj); ok {
			page.Rotate = int(r.Int())
		}
	} else if inherited.Rotate != nil {
		page.Rotate = *inherited.Rotate
	}

	resObj, hasRes := dict.Get(raw.NameLiteral("Resources"))
	if !hasRes {
		resObj = inherited.Resources
	}
	if resObj != nil {
		res, err := parseResources(resObj, resolver, log)
		if err != nil {
			log.Warn("failed to parse page resources", observability.Error("error", err))
		} else {
			page.Resources = res
		}
	}

	if contentsObj, ok := dict.Get(raw.NameLiteral("Contents")); ok {
		stream, err := parseContentStream(contentsObj, resolver)
		if err != nil {
			log.Warn("failed to read page contents", observability.Error("error", err))
		} else {
			page.Contents = []ContentStream{stream}
		}
	}

	return page, nil
}

// parseContentStream concatenates the page's content streams into one
// logical stream, recording the originating object refs in order.
func parseContentStream(obj raw.Object, resolver rawResolver) (ContentStream, error) {
	var cs ContentStream

	appendStream := func(ref raw.ObjectRef, stream *raw.StreamObj) error {
		data, ok := resolver.StreamData(ref)
		if !ok {
			var err error
			data, err = decodeStream(stream)
			if err != nil {
				return err
			}
		}
		if len(cs.RawBytes) > 0 {
			cs.RawBytes = append(cs.RawBytes, '\n')
		}
		cs.RawBytes = append(cs.RawBytes, data...)
		cs.Refs = append(cs.Refs, ref)
		return nil
	}

	var handle func(obj raw.Object, ref raw.ObjectRef) error
	handle = func(obj raw.Object, ref raw.ObjectRef) error {
		if r, ok := obj.(raw.Reference); ok {
			resolved, err := resolver.Resolve(r.Ref())
			if err != nil {
				return err
			}
			return handle(resolved, r.Ref())
		}
		switch v := obj.(type) {
		case *raw.StreamObj:
			return appendStream(ref, v)
		case *raw.ArrayObj:
			for _, item := range v.Items {
				if err := handle(item, raw.ObjectRef{}); err != nil {
					return err
				}
			}
			return nil
		default:
			return fmt.Errorf("Contents is not a stream or array, got %T", obj)
		}
	}

	if err := handle(obj, raw.ObjectRef{}); err != nil {
		return ContentStream{}, err
	}

	ops, err := ParseOperations(cs.RawBytes)
	if err != nil {
		return ContentStream{}, fmt.Errorf("parse operations: %w", err)
	}
	cs.Operations = ops
	return cs, nil
}

// decodeStream applies the stream's own filter chain. Used for streams
// that were not pre-decoded (direct objects inside arrays).
func decodeStream(stream *raw.StreamObj) ([]byte, error) {
	names, params := filters.ExtractFilters(stream.Dict)
	if len(names) == 0 {
		return stream.Data, nil
	}
	pipeline := filters.NewPipeline(filters.StandardDecoders(), filters.Limits{
		MaxDecompressedSize: 100 * 1024 * 1024,
	})
	return pipeline.Decode(context.Background(), stream.Data, names, params)
}

func resolveArray(obj raw.Object, resolver rawResolver) (*raw.ArrayObj, bool) {
	if ref, ok := obj.(raw.Reference); ok {
		resolved, err := resolver.Resolve(ref.Ref())
		if err != nil {
			return nil, false
		}
		obj = resolved
	}
	arr, ok := obj.(*raw.ArrayObj)
	return arr, ok
}

func parseNumberArray(obj raw.Object, resolver rawResolver) []float64 {
	arr, ok := resolveArray(obj, resolver)
	if !ok {
		return nil
	}
	var nums []float64
	for _, item := range arr.Items {
		if n, ok := item.(raw.NumberObj); ok {
			nums = append(nums, n.Float())
		}
	}
	return nums
}

func parseRectangleFromObj(obj raw.Object, resolver rawResolver) *Rectangle {
	nums := parseNumberArray(obj, resolver)
	if len(nums) < 4 {
		return nil
	}
	r := Rectangle{LLX: nums[0], LLY: nums[1], URX: nums[2], URY: nums[3]}
	if r.LLX > r.URX {
		r.LLX, r.URX = r.URX, r.LLX
	}
	if r.LLY > r.URY {
		r.LLY, r.URY = r.URY, r.LLY
	}
	return &r
}
