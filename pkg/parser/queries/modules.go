package queries

// moduleQuery matches every way a script reaches another module. The same
// patterns compile against the JavaScript, TypeScript and TSX grammars.
//
// Captures:
//   - @static.*  import and export statements with a source
//   - @require.* require("...") calls
//   - @dynamic.* import("...") expressions
//   - @cjs.*     module.exports and exports.x assignments
const moduleQuery = `
(import_statement
  source: (string (string_fragment) @static.source)) @static.statement

(export_statement
  source: (string (string_fragment) @static.source)) @static.statement

(call_expression
  function: (identifier) @_require (#eq? @_require "require")
  arguments: (arguments . (string (string_fragment) @require.source))) @require.call

(call_expression
  function: (import)
  arguments: (arguments . (string (string_fragment) @dynamic.source))) @dynamic.call

(assignment_expression
  left: (member_expression
    object: (identifier) @_module (#eq? @_module "module")
    property: (property_identifier) @_exports (#eq? @_exports "exports"))) @cjs.default

(assignment_expression
  left: (member_expression
    object: (identifier) @_exports (#eq? @_exports "exports")
    property: (property_identifier) @cjs.name)) @cjs.assign

(assignment_expression
  left: (member_expression
    object: (member_expression
      object: (identifier) @_module (#eq? @_module "module")
      property: (property_identifier) @_exports (#eq? @_exports "exports"))
    property: (property_identifier) @cjs.name)) @cjs.assign
`
