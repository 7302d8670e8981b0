// Package sources downloads rule documents from the registered sources.
//
// A Fetcher performs exactly one request per source and never returns an
// error to the caller: every failure is classified into a FetchError and
// carried on the FetchResult, so one broken source only omits its own
// section from the merged document.
//
// Cacheable and direct sources use different request profiles. Cacheable
// sources are sent a full browser header set and, unless disabled, skip TLS
// certificate verification. Direct sources send the User-Agent only and
// always verify certificates.
//
// FetchAll runs fetches concurrently and returns results in the order of
// its input, independent of completion order.
package sources
