package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const listingHTML = `<!DOCTYPE html>
<html><body>
<header>
  <a href="/cart"><img src="/icons/cart.svg" alt="Cart"></a>
  <a href="/account/login"><img src="/icons/user.svg" alt="Login"></a>
</header>
<div class="grid">
  <div class="product-card">
    <a href="/products/dinner-set-24"><img src="/img/dinner-24.jpg" alt="Dinner Set 24 Pieces"></a>
    <span class="price">₹2,499</span>
  </div>
  <div class="product-card">
    <a href="https://shop.example.com/products/dinner-set-36"><img data-src="//cdn.example.com/dinner-36.jpg" alt=""></a>
    <h3 class="product-title">Dinner Set 36 Pieces</h3>
    <span class="price">Rs. 3,999.00</span>
  </div>
  <div class="product-card">
    <a href="/products/dinner-set-lazy"><img src="data:image/gif;base64,R0lGOD" alt="Lazy Dinner Set"></a>
    <span class="price">₹1,899</span>
  </div>
  <div class="product-card">
    <a href="/products/dinner-set-srcset" title="Dinner Set Srcset"><img srcset="/img/s-320.jpg 320w, /img/s-640.jpg 640w"></a>
    <span class="price">₹999</span>
  </div>
</div>
</body></html>`

func TestHarvestHTML(t *testing.T) {
	products, err := HarvestHTML(listingHTML, testBaseURL)
	require.NoError(t, err)
	require.Len(t, products, 3, "tile whose only image is a data URI is dropped")

	assert.Equal(t, "Dinner Set 24 Pieces", products[0].Name)
	assert.Equal(t, "₹2,499", products[0].PriceText)
	assert.Equal(t, testBaseURL+"/img/dinner-24.jpg", products[0].Image)
	assert.Equal(t, testBaseURL+"/products/dinner-set-24", products[0].URL)

	assert.Equal(t, "Dinner Set 36 Pieces", products[1].Name)
	assert.Equal(t, "Rs. 3,999.00", products[1].PriceText)
	assert.Equal(t, "https://cdn.example.com/dinner-36.jpg", products[1].Image)

	assert.Equal(t, "Dinner Set Srcset", products[2].Name)
	assert.Equal(t, testBaseURL+"/img/s-320.jpg", products[2].Image)

	for _, p := range products {
		assert.NotContains(t, p.Image, "data:")
	}
}

func TestHarvestHTML_SkipsNavigationAndCodeNames(t *testing.T) {
	html := `<html><body>
	<div class="card">
	  <a href="/search?q=plates"><img src="/a.jpg" alt="Search Plates"></a><span>₹10</span>
	</div>
	<div class="card">
	  <a href="/products/leaked"><img src="/b.jpg" alt="var x = {a:1}"></a><span>₹20</span>
	</div>
	</body></html>`

	products, err := HarvestHTML(html, testBaseURL)
	require.NoError(t, err)
	assert.Empty(t, products)
}

func TestHarvestHTML_RequiresPrice(t *testing.T) {
	html := `<html><body>
	<div class="card"><a href="/products/no-price"><img src="/c.jpg" alt="No Price Plate"></a><span>Sold out</span></div>
	</body></html>`

	products, err := HarvestHTML(html, testBaseURL)
	require.NoError(t, err)
	assert.Empty(t, products)
}

func TestHarvestHTML_DedupesLinks(t *testing.T) {
	html := `<html><body>
	<div class="card"><a href="/products/mug-set"><img src="/m1.jpg" alt="Mug Set of 6"></a><b>₹450</b></div>
	<div class="card"><a href="/products/mug-set"><img src="/m2.jpg" alt="Mug Set of 6"></a><b>₹450</b></div>
	</body></html>`

	products, err := HarvestHTML(html, testBaseURL)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, testBaseURL+"/m1.jpg", products[0].Image)
}
