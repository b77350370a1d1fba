package cdp

// Functions called with `this` bound to the resolved element.

const submitFormJS = `function() {
	const form = this.tagName === "FORM" ? this : (this.form || this.closest("form"));
	if (!form) { return false; }
	if (typeof form.requestSubmit === "function") { form.requestSubmit(); } else { form.submit(); }
	return true;
}`

const innerTextJS = `function() {
	return this.innerText || this.textContent || "";
}`

const attributeJS = `function(name) {
	if (name === "value" && "value" in this) { return {ok: true, value: String(this.value)}; }
	if (!this.hasAttribute(name)) { return {ok: false, value: ""}; }
	return {ok: true, value: this.getAttribute(name)};
}`

// actionBlockerJS returns why the element cannot take input, or "".
const actionBlockerJS = `function(typing) {
	if (this.disabled) { return "element is disabled"; }
	const style = window.getComputedStyle(this);
	if (style.visibility === "hidden" || style.display === "none") { return "element is not visible"; }
	if (typing && this.readOnly) { return "element is read-only"; }
	if (typing && !this.isContentEditable && !("value" in this)) { return "element does not accept text"; }
	return "";
}`

// identityJS reports what locator.Identify would for the element: tag, id,
// name and its rendered text minus editable content, with the same
// whitespace set collapsed and cut to 64 code points.
const identityJS = `function() {
	const skipped = new Set(["head", "script", "style", "noscript", "template", "textarea"]);
	const parts = [];
	const walk = (n) => {
		if (n.nodeType === Node.TEXT_NODE || n.nodeType === Node.CDATA_SECTION_NODE) { parts.push(n.data); return; }
		if (n.nodeType !== Node.ELEMENT_NODE) { return; }
		if (skipped.has(n.localName.toLowerCase())) { return; }
		const editable = n.getAttribute("contenteditable");
		if (editable !== null && editable.toLowerCase() !== "false") { return; }
		for (const c of n.childNodes) { walk(c); }
	};
	walk(this);
	const text = parts.join("")
		.split(/[\t\n\v\f\r \u0085\u00a0\u1680\u2000-\u200a\u2028\u2029\u202f\u205f\u3000]+/)
		.filter(Boolean)
		.join(" ");
	return {
		tag: this.localName,
		id: this.getAttribute("id") || "",
		name: this.getAttribute("name") || "",
		text: Array.from(text).slice(0, 64).join("")
	};
}`
