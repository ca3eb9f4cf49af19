// Package kvp implements the key-value metadata frames attached to splits
// and transactions.
//
// A Frame is an extensible property bag owned exclusively by its entity.
// Values form a sealed set (String, Int, Bool, Numeric, List, Frame); there
// is no float type, so every frame has exactly one canonical encoding.
// That encoding (RFC 8785 style: UTF-16 key order, NFC strings, no HTML
// escaping) is the basis for Compare and Hash, and is reused by the store
// and the scenario harness for snapshot payloads.
package kvp
