package webfinger

// Filter returns resp with only the links whose rel is one of rels. The remaining links keep
// their relative order and the rest of the document is left as is. An empty rels returns resp
// unchanged, since a query without rel parameters asks for every link.
func Filter(resp Response, rels []Rel) Response {
	if len(rels) == 0 {
		return resp
	}
	wanted := make(map[Rel]struct{}, len(rels))
	for _, rel := range rels {
		wanted[rel] = struct{}{}
	}
	var links []Link
	for _, link := range resp.links {
		if _, ok := wanted[link.rel]; ok {
			links = append(links, link)
		}
	}
	resp.links = links
	return resp
}

// Filter applies the rels of r to resp.
func (r Request) Filter(resp Response) Response {
	return Filter(resp, r.rels)
}
