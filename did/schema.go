package did

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// documentSchema pins the wire shape of a document before field-level
// parsing: which members are required, which are arrays, which are
// strings. Semantic rules (key membership, date ranges, signatures) are
// checked by the parser afterwards.
const documentSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["id", "publicKey", "expires", "proof"],
  "properties": {
    "id": { "type": "string" },
    "publicKey": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["id", "publicKeyBase58"],
        "properties": {
          "id": { "type": "string" },
          "type": { "type": "string" },
          "controller": { "type": "string" },
          "publicKeyBase58": { "type": "string" }
        }
      }
    },
    "authentication": {
      "type": "array",
      "items": { "type": ["string", "object"] }
    },
    "authorization": {
      "type": "array",
      "items": { "type": ["string", "object"] }
    },
    "verifiableCredential": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "type", "issuanceDate", "credentialSubject", "proof"],
        "properties": {
          "id": { "type": "string" },
          "type": {
            "type": "array",
            "minItems": 1,
            "items": { "type": "string" }
          },
          "issuer": { "type": "string" },
          "issuanceDate": { "type": "string" },
          "expirationDate": { "type": "string" },
          "credentialSubject": { "type": "object" },
          "proof": { "type": "object" }
        }
      }
    },
    "service": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "type", "serviceEndpoint"],
        "properties": {
          "id": { "type": "string" },
          "type": { "type": "string" },
          "serviceEndpoint": { "type": "string" }
        }
      }
    },
    "expires": { "type": "string" },
    "proof": {
      "type": "object",
      "required": ["created", "signatureValue"],
      "properties": {
        "type": { "type": "string" },
        "created": { "type": "string" },
        "creator": { "type": "string" },
        "signatureValue": { "type": "string" }
      }
    }
  }
}`

var documentSchemaLoader = gojsonschema.NewStringLoader(documentSchema)

func validateDocumentShape(data []byte) error {
	result, err := gojsonschema.Validate(documentSchemaLoader, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return wrapError(CodeMalformedDocument, err, "invalid document JSON")
	}
	if !result.Valid() {
		msg := "document does not match the expected shape:"
		for _, desc := range result.Errors() {
			msg += fmt.Sprintf(" %s;", desc)
		}
		return newError(CodeMalformedDocument, "%s", msg)
	}
	return nil
}
