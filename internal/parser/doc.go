// Package parser provides the content parsers that feed the link graph.
//
//   - HTMLParser (text/html, application/xhtml+xml): links, embeds,
//     anchors, title, author, encoding and meta refresh
//   - CSSParser (text/css): @import rules and url() references
//   - ImageParser (image/jpeg, image/tiff): EXIF artist, description and
//     capture time
//
// Parsers only ever see internal links; a returned error is recorded as a
// page problem by the crawler.
package parser
