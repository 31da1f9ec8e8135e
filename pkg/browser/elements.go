package browser

import (
	"encoding/json"
	"fmt"

	"github.com/entrhq/drover/pkg/types"
)

// elementScript runs in the page and collects the visible interactive
// elements with a selector stable enough to feed back into click and type
// actions: an id when there is one, then a name, then an nth-of-type path.
const elementScript = `(limit) => {
	const selectorFor = (el) => {
		if (el.id) return '#' + CSS.escape(el.id);
		const name = el.getAttribute('name');
		if (name) {
			return el.tagName.toLowerCase() + '[name="' + name.replace(/"/g, '\\"') + '"]';
		}
		const parts = [];
		let node = el;
		while (node && node.nodeType === Node.ELEMENT_NODE && parts.length < 6) {
			let nth = 1;
			let sib = node.previousElementSibling;
			while (sib) {
				if (sib.tagName === node.tagName) nth++;
				sib = sib.previousElementSibling;
			}
			parts.unshift(node.tagName.toLowerCase() + ':nth-of-type(' + nth + ')');
			if (node.parentElement && node.parentElement.id) {
				parts.unshift('#' + CSS.escape(node.parentElement.id));
				break;
			}
			node = node.parentElement;
		}
		return parts.join(' > ');
	};
	const visible = (el) => {
		const rect = el.getBoundingClientRect();
		if (rect.width <= 0 || rect.height <= 0) return false;
		const style = window.getComputedStyle(el);
		return style.display !== 'none' && style.visibility !== 'hidden' && style.opacity !== '0';
	};
	const found = document.querySelectorAll(
		'a[href], button, input, select, textarea, [role="button"], [onclick], [contenteditable]'
	);
	const out = [];
	for (const el of found) {
		if (out.length >= limit) break;
		if (!visible(el)) continue;
		const rect = el.getBoundingClientRect();
		out.push({
			selector: selectorFor(el),
			tag: el.tagName.toLowerCase(),
			text: (el.innerText || el.value || '').trim().slice(0, 120),
			aria_label: el.getAttribute('aria-label') || '',
			bounds: { x: rect.x, y: rect.y, width: rect.width, height: rect.height },
		});
	}
	return out;
}`

// collectElements scans the live page for interactive elements, at most
// limit of them.
func (s *Session) collectElements(limit int) ([]types.ElementRef, error) {
	raw, err := s.page.Evaluate(elementScript, limit)
	if err != nil {
		return nil, fmt.Errorf("element scan failed: %w", err)
	}
	return decodeElements(raw)
}

// decodeElements converts the untyped evaluate result into element refs via
// a JSON round trip, which tolerates missing and extra fields.
func decodeElements(raw interface{}) ([]types.ElementRef, error) {
	if raw == nil {
		return nil, nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("encode element scan: %w", err)
	}
	var elements []types.ElementRef
	if err := json.Unmarshal(data, &elements); err != nil {
		return nil, fmt.Errorf("decode element scan: %w", err)
	}
	return elements, nil
}
