package normalization

import (
  "regexp"
  "strings"
)

// e164Pattern is the canonical shape: the international marker, a 1-3 digit
// region code and a 4-14 digit subscriber number.
var e164Pattern = regexp.MustCompile(`^\+[1-9][0-9]{4,16}$`)

var digitsOnly = regexp.MustCompile(`^[0-9]+$`)

// ParseInputString trims surrounding whitespace from user supplied input.
func ParseInputString(s string) string {
  return strings.TrimSpace(s)
}

// NormalizePhone converts arbitrary phone input into the canonical
// international identifier used as the lookup key everywhere. It is a pure
// function: the same input always yields the same output. The second return
// value is false when no canonical form could be derived.
//
// Numbers without an international marker are attributed to the default
// region (+94). Ambiguous short inputs may therefore be mis-attributed;
// that is accepted behavior, not corrected here.
func NormalizePhone(input string) (string, bool) {
  s := ParseInputString(input)
  if s == "" {
    return "", false
  }

  // Already international: validate the shape and return unchanged.
  if strings.HasPrefix(s, "+") {
    if e164Pattern.MatchString(s) {
      return s, true
    }
    return "", false
  }

  if !digitsOnly.MatchString(s) {
    return "", false
  }

  // Strip a single local trunk prefix digit.
  if strings.HasPrefix(s, "0") {
    s = s[1:]
  }

  var candidate string
  switch {
  case len(s) == 11 && strings.HasPrefix(s, "94"):
    // Region code typed out without the marker.
    candidate = "+" + s
  case len(s) == 9 && strings.HasPrefix(s, "7"):
    // Default region mobile number.
    candidate = "+94" + s
  case len(s) == 9:
    // Default region fallback (landlines and the rest).
    candidate = "+94" + s
  default:
    return "", false
  }

  if !e164Pattern.MatchString(candidate) {
    return "", false
  }
  return candidate, true
}
