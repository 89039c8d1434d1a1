// Package docs provides generated OpenAPI documentation.
//
// VBPL API
//
//	@title			VBPL API
//	@version		1.0
//	@description	Vietnamese legal document processing API: segmentation, relationship resolution, chunking and search.
//
//	@contact.name	API Support
//	@contact.url	https://github.com/jackzampolin/vbpl
//
//	@license.name	MIT
//	@license.url	https://opensource.org/licenses/MIT
//
//	@host		localhost:8080
//	@BasePath	/
//
//	@schemes	http https
package docs

//go:generate swag init -g ../cmd/vbpl/serve.go -o ./swagger --parseDependency --parseInternal
