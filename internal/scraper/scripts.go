package scraper

import (
	"encoding/json"
	"fmt"

	"github.com/maltedev/price-comparison-scraper/internal/models"
	"github.com/maltedev/price-comparison-scraper/internal/parser"
)

// harvestScript runs inside the page and returns plain product candidates.
// Its heuristics mirror parser.HarvestHTML and read their constants from
// the argument built by harvestArgs.
const harvestScript = `(cfg) => {
  const navRe = new RegExp(cfg.navPattern, 'i');
  const priceRe = new RegExp(cfg.pricePattern, 'i');
  const clean = (s) => (s || '').replace(/\s+/g, ' ').trim();
  const isData = (s) => /^data:/i.test((s || '').trim());
  const validName = (n) =>
    n.length >= cfg.minName && n.length <= cfg.maxName &&
    !cfg.codeFragments.some((f) => n.includes(f));

  const imageOf = (img) => {
    if (!img) return '';
    const candidates = [
      img.getAttribute('src'),
      img.getAttribute('data-src'),
      img.getAttribute('data-lazy-src'),
    ];
    const srcset = img.getAttribute('srcset') || img.getAttribute('data-srcset');
    if (srcset) candidates.push(srcset.split(',')[0].trim().split(/\s+/)[0]);
    for (const c of candidates) {
      const v = (c || '').trim();
      if (v && !isData(v)) return v;
    }
    return '';
  };

  const tileOf = (a) => {
    let el = a;
    for (let level = 0; level < cfg.maxLevels && el; level++, el = el.parentElement) {
      const text = clean(el.innerText || el.textContent);
      if (!text || text.length >= cfg.maxText) continue;
      if (!priceRe.test(text)) continue;
      if (el.querySelectorAll('img').length > cfg.maxImages) continue;
      if (el.querySelectorAll('a').length > cfg.maxLinks) continue;
      return el;
    }
    return null;
  };

  const nameOf = (a, img, tile) => {
    const alt = clean(img.getAttribute('alt'));
    if (alt.length >= cfg.minName && alt.length <= cfg.maxName) return alt;
    for (const el of tile.querySelectorAll(cfg.nameSelector)) {
      const t = clean(el.innerText || el.textContent);
      if (t && !t.includes('₹') && !t.includes('{')) return t;
    }
    return clean(a.getAttribute('title'));
  };

  const brandOf = (tile) => {
    if (!cfg.brandSelector) return '';
    try {
      const el = tile.querySelector(cfg.brandSelector);
      return el ? clean(el.innerText || el.textContent) : '';
    } catch (e) {
      return '';
    }
  };

  const out = [];
  const seen = new Set();
  for (const a of document.querySelectorAll('a[href]')) {
    const raw = (a.getAttribute('href') || '').trim();
    if (raw.length < cfg.minHref || navRe.test(raw)) continue;
    const img = a.querySelector('img');
    if (!img) continue;
    const tile = tileOf(a);
    if (!tile) continue;
    const href = a.href;
    if (!href || seen.has(href)) continue;
    const image = imageOf(img) || imageOf(tile.querySelector('img'));
    if (!image) continue;
    const name = nameOf(a, img, tile);
    if (!validName(name)) continue;
    seen.add(href);
    const price = clean(tile.innerText || tile.textContent).match(priceRe);
    out.push({ name, brand: brandOf(tile), priceText: price ? price[0] : '', image, url: href });
  }
  return out;
}`

const scrollScript = `() => { window.scrollTo(0, document.body.scrollHeight); return document.body.scrollHeight; }`

const countImagesScript = `() => document.querySelectorAll('a img').length`

// pageStateScript returns embedded application state as JSON strings.
const pageStateScript = `() => {
  const out = [];
  const push = (v) => {
    try {
      if (v === undefined || v === null) return;
      out.push(typeof v === 'string' ? v : JSON.stringify(v));
    } catch (e) {}
  };
  for (const key of ['__NEXT_DATA__', '__NUXT__', '__INITIAL_STATE__', '__PRELOADED_STATE__']) {
    if (key in window) push(window[key]);
  }
  document
    .querySelectorAll('script[type="application/ld+json"], script[type="application/json"]')
    .forEach((s) => push(s.textContent));
  return out;
}`

func harvestArgs(cfg models.CompetitorConfig) map[string]any {
	return map[string]any{
		"navPattern":    parser.NavLinkPattern,
		"pricePattern":  parser.PricePattern,
		"codeFragments": parser.CodeFragments,
		"nameSelector":  parser.NameSelector,
		"brandSelector": cfg.Selectors.Brand,
		"maxLevels":     parser.MaxAncestorLevels,
		"maxImages":     parser.MaxTileImages,
		"maxLinks":      parser.MaxTileLinks,
		"maxText":       parser.MaxTileText,
		"minHref":       parser.MinHrefLength,
		"minName":       parser.MinNameLength,
		"maxName":       parser.MaxNameLength,
	}
}

// decodeRawProducts converts the plain objects returned by harvestScript.
func decodeRawProducts(v any) ([]models.RawProduct, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode harvest result: %w", err)
	}
	var products []models.RawProduct
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, fmt.Errorf("unexpected harvest result: %w", err)
	}
	return products, nil
}

func toInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}

func toStrings(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}
