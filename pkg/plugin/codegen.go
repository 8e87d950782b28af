package plugin

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path"
	"strings"
)

// BodyType selects how a fetched asset response is decoded.
type BodyType string

const (
	BodyText        BodyType = "text"
	BodyJSON        BodyType = "json"
	BodyBlob        BodyType = "blob"
	BodyFormData    BodyType = "formData"
	BodyArrayBuffer BodyType = "arrayBuffer"
	BodyUint8       BodyType = "uint8"
	BodyBase64      BodyType = "base64"
	BodyDataBase64  BodyType = "dataBase64"
	BodyObjectURL   BodyType = "objectURL"
	BodyFile        BodyType = "file"
	BodyAudio       BodyType = "audio"
)

// DefaultRequestInit is the fetch init object passed with every request.
const DefaultRequestInit = `{"cache":"force-cache"}`

// ParseBodyType maps a marker or config value onto a body type.
func ParseBodyType(s string) (BodyType, bool) {
	switch b := BodyType(s); b {
	case BodyText, BodyJSON, BodyBlob, BodyFormData, BodyArrayBuffer, BodyUint8,
		BodyBase64, BodyDataBase64, BodyObjectURL, BodyFile, BodyAudio:
		return b, true
	}
	switch s {
	case "buff":
		return BodyArrayBuffer, true
	case "buf":
		return BodyUint8, true
	case "b64":
		return BodyBase64, true
	case "image", "img":
		return BodyObjectURL, true
	}
	return "", false
}

// decodeChain returns the .then() steps that turn a Response into the
// asset value.
func decodeChain(body BodyType, relPath string) (string, error) {
	switch body {
	case BodyText:
		return `.then(response => response.text())`, nil
	case BodyJSON:
		return `.then(response => response.json())`, nil
	case BodyBlob:
		return `.then(response => response.blob())`, nil
	case BodyFormData:
		return `.then(response => response.formData())`, nil
	case BodyArrayBuffer:
		return `.then(response => response.arrayBuffer())`, nil
	case BodyUint8:
		return `.then(response => response.arrayBuffer()).then(buffer => new Uint8Array(buffer))`, nil
	case BodyBase64:
		return `.then(response => response.arrayBuffer())` +
			`.then(buffer => btoa(new Uint8Array(buffer).reduce((data, byte) => data + String.fromCharCode(byte), '')))`, nil
	case BodyDataBase64:
		return `.then(response => response.blob())` +
			`.then(blob => new Promise((done, fail) => {const reader = new FileReader();reader.onload = () => done(reader.result);reader.onerror = () => fail(reader.error);reader.readAsDataURL(blob);}))`, nil
	case BodyObjectURL:
		return `.then(response => response.blob()).then(blob => URL.createObjectURL(blob))`, nil
	case BodyFile:
		return `.then(response => response.blob()).then(blob => new File([blob], ` + jsString(path.Base(relPath)) + `))`, nil
	case BodyAudio:
		return `.then(response => response.arrayBuffer()).then(buffer => new AudioContext().decodeAudioData(buffer))`, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedBody, body)
	}
}

// fetchNames are the local names a fetch shim assigns.
type fetchNames struct {
	value   string // receives the decoded asset once loaded
	url     string // receives the absolute asset URL synchronously
	promise string // receives the promise of the decoded asset
}

func moduleURL(relPath string) string {
	return "__GetModuleDir() + " + jsString(relPath)
}

// fetchCode generates a shim that declares the requested names and starts
// loading the asset immediately.
func fetchCode(body BodyType, relPath string, names fetchNames) (string, error) {
	chain, err := decodeChain(body, relPath)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	if names.value != "" {
		b.WriteString("let " + names.value + ";")
	}
	if names.url != "" {
		b.WriteString("const " + names.url + " = " + moduleURL(relPath) + ";")
	}
	if names.promise != "" {
		b.WriteString("const " + names.promise + " = ")
	}
	b.WriteString("new Promise((resolve, reject) => {fetch(" + moduleURL(relPath) + ", " + DefaultRequestInit + ")")
	b.WriteString(chain)
	if names.value != "" {
		b.WriteString(".then(value => " + names.value + " = value)")
	}
	b.WriteString(".then(value => resolve(value)).catch(reason => reject(reason));});")
	return b.String(), nil
}

// namespaceCode generates a shim exposing value, url and promise as
// properties of one object. def, when set, also receives the value.
func namespaceCode(body BodyType, relPath, alias, def string) (string, error) {
	chain, err := decodeChain(body, relPath)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	if def != "" {
		b.WriteString("let " + def + ";")
	}
	b.WriteString("const " + alias + " = {};")
	b.WriteString(alias + ".url = " + moduleURL(relPath) + ";")
	b.WriteString(alias + ".promise = new Promise((resolve, reject) => {fetch(" + moduleURL(relPath) + ", " + DefaultRequestInit + ")")
	b.WriteString(chain)
	assign := alias + ".value = value"
	if def != "" {
		assign = alias + ".value = " + def + " = value"
	}
	b.WriteString(".then(value => " + assign + ")")
	b.WriteString(".then(value => resolve(value)).catch(reason => reject(reason));});")
	return b.String(), nil
}

// InjectType selects how an asset is applied to the document.
type InjectType string

const (
	// InjectFetchStyle fetches the stylesheet and appends a <style> element.
	InjectFetchStyle InjectType = "fetch:style"
	// InjectLinkStyle appends a <link rel="stylesheet"> element.
	InjectLinkStyle InjectType = "load:style"
)

func injectCode(kind InjectType, relPath string) (string, error) {
	switch kind {
	case InjectFetchStyle:
		return "(() => {fetch(" + moduleURL(relPath) + ", " + DefaultRequestInit + ")" +
			".then(response => response.text())" +
			".then(text => {const style = document.createElement('style');style.textContent = text;document.head.append(style);});})();", nil
	case InjectLinkStyle:
		return "(() => {const link = document.createElement('link');link.rel = 'stylesheet';link.href = " +
			moduleURL(relPath) + ";document.head.append(link);})();", nil
	default:
		return "", ErrInjectUnsupported
	}
}

// ModuleWrapper returns the body of the script that re-exports an asset's
// raw content as its default export.
func ModuleWrapper(content []byte) string {
	return "export default " + jsString(string(content)) + ";"
}

// jsString quotes s as a JavaScript string literal.
func jsString(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return `""`
	}
	return strings.TrimSuffix(buf.String(), "\n")
}
