package registry

// DefaultSources is the built-in source table used when the configuration
// does not list any sources.
var DefaultSources = []SourceDescriptor{
	{
		Name:  "adultraplus",
		URL:   "https://whatshub.top/rewrite/adultraplus.conf",
		Class: ClassCacheable,
	},
	{
		Name:  "wechatad",
		URL:   "https://whatshub.top/rewrite/wechatad.conf",
		Class: ClassCacheable,
	},
	{
		Name:  "youtube",
		URL:   "https://whatshub.top/rewrite/youtube.conf",
		Class: ClassCacheable,
	},
	{
		Name: "surge去广告",
		URL: "https://raw.githubusercontent.com/QingRex/LoonKissSurge/refs/heads/main/Surge/Official/" +
			"%E6%96%B0%E6%89%8B%E5%8F%8B%E5%A5%BD%E3%81%AE%E5%8E%BB%E5%B9%BF%E5%91%8A%E9%9B%86%E5%90%88.official.sgmodule",
		Class: ClassDirect,
	},
}

// Default returns a Registry built from DefaultSources.
func Default() *Registry {
	return MustNew(DefaultSources...)
}
