package fingerprint

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/CZERTAINLY/camseeker/internal/log"
	"github.com/CZERTAINLY/camseeker/internal/model"
)

// Sniff is a quick secondary brand pass over the first ports, using a
// short timeout. It returns the distinct brands in catalog order.
func (f *Fingerprinter) Sniff(ctx context.Context, target model.Target, ports []int, limit int, timeout time.Duration) []model.Brand {
	ctx = log.ContextAttrs(ctx, slog.String("component", "sniff"))
	client := f.web.WithTimeout(timeout)

	found := make(map[model.Brand]struct{})
	for _, port := range ports[:min(limit, len(ports))] {
		if ctx.Err() != nil {
			break
		}
		url := client.BaseURL(target, port) + "/"
		resp, err := client.Get(ctx, url)
		if err != nil || resp.Status != http.StatusOK {
			continue
		}
		text := resp.Text() + " " + strings.ToLower(url)
		for _, bk := range f.catalog.Fingerprint.Sniff {
			if kw, ok := bk.Match(text); ok {
				brand := model.ParseBrand(bk.Brand)
				if _, seen := found[brand]; !seen {
					slog.DebugContext(ctx, "brand indicator found", "brand", brand, "indicator", kw, "url", url)
				}
				found[brand] = struct{}{}
			}
		}
	}

	var ret []model.Brand
	for _, bk := range f.catalog.Fingerprint.Sniff {
		brand := model.ParseBrand(bk.Brand)
		if _, ok := found[brand]; ok && !slices.Contains(ret, brand) {
			ret = append(ret, brand)
		}
	}
	return ret
}
